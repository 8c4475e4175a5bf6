package relink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mock.Mock
}

func newFakeConn() *fakeConn {
	c := &fakeConn{}
	c.On("Close", mock.Anything, mock.Anything).Return(nil).Maybe()
	c.On("Cancel").Return().Maybe()
	return c
}

func (c *fakeConn) Close(code int, reason string) error {
	return c.Called(code, reason).Error(0)
}

func (c *fakeConn) Cancel() {
	c.Called()
}

type openCall struct {
	url      string
	listener Listener
	conn     *fakeConn
}

// fakeTransport records every Open. Tests drive the returned listeners by hand, acting as the
// transport's callback goroutine.
type fakeTransport struct {
	mu     sync.Mutex
	calls  []openCall
	opened chan openCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{opened: make(chan openCall, 64)}
}

func (t *fakeTransport) Open(_ context.Context, url string, l Listener) Conn {
	call := openCall{url: url, listener: l, conn: newFakeConn()}

	t.mu.Lock()
	t.calls = append(t.calls, call)
	t.mu.Unlock()

	t.opened <- call
	return call.conn
}

func (t *fakeTransport) opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

func (t *fakeTransport) next(tb testing.TB) openCall {
	tb.Helper()

	select {
	case call := <-t.opened:
		return call
	case <-time.After(2 * time.Second):
		require.FailNow(tb, "transport was never opened")
		return openCall{}
	}
}

// scriptedRand returns its values in order, cycling, each clamped to [0, n).
type scriptedRand struct {
	mu     sync.Mutex
	values []int64
	i      int
}

func newScriptedRand(values ...int64) *scriptedRand {
	return &scriptedRand{values: values}
}

func (r *scriptedRand) Int64N(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.values[r.i%len(r.values)]
	r.i++
	return min(max(v, 0), n-1)
}
