package relink

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *MessageStream) string {
	t.Helper()

	select {
	case text, ok := <-s.C():
		require.True(t, ok, "stream closed")
		return text
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no message received")
		return ""
	}
}

func TestMessageStream_PushNeverBlocks(t *testing.T) {
	s := newMessageStream(context.Background(), func() {})
	defer s.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s.push(fmt.Sprintf("msg-%d", i))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "push blocked without a reader")
	}

	for i := 0; i < 1000; i++ {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), receive(t, s))
	}
}

func TestMessageStream_CancelStopsBeforeTeardown(t *testing.T) {
	var (
		stops      atomic.Int32
		doneAtStop atomic.Bool
		s          *MessageStream
	)

	s = newMessageStream(context.Background(), func() {
		stops.Add(1)
		select {
		case <-s.Done():
			doneAtStop.Store(true)
		default:
		}
	})

	s.Cancel()
	s.Cancel()

	assert.Equal(t, int32(1), stops.Load())
	assert.False(t, doneAtStop.Load(), "stream torn down before stop returned")

	select {
	case <-s.Done():
	default:
		assert.Fail(t, "stream not torn down")
	}

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-s.C():
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestMessageStream_PushAfterCloseIsDropped(t *testing.T) {
	s := newMessageStream(context.Background(), func() {})
	s.Cancel()

	s.push("late")

	_, ok := <-s.C()
	assert.False(t, ok)
}

func TestMessageStream_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var stops atomic.Int32
	s := newMessageStream(ctx, func() { stops.Add(1) })

	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "context cancellation did not tear the stream down")
	}
	assert.Equal(t, int32(1), stops.Load())
}
