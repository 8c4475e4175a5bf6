package relink

import (
	"context"
	"sync"
)

// MessageStream is the consumer side of a Manager: an ordered sequence of text frames for a
// single subscriber. It never completes on its own; Cancel tears it down and stops the Manager.
//
// Frames are queued without bound so the transport goroutine never waits on a slow consumer.
type MessageStream struct {
	stop func()

	mu     sync.Mutex
	queue  []string
	closed bool

	notify chan struct{}
	out    chan string
	done   chan struct{}

	closeOnce  sync.Once
	cancelOnce sync.Once
}

func newMessageStream(ctx context.Context, stop func()) *MessageStream {
	s := &MessageStream{
		stop:   stop,
		notify: make(chan struct{}, 1),
		out:    make(chan string),
		done:   make(chan struct{}),
	}

	go s.pump()
	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.done:
		}
	}()

	return s
}

// C returns the frames, in arrival order. The channel is closed once the stream is torn down.
func (s *MessageStream) C() <-chan string {
	return s.out
}

// Done is closed when the stream has been torn down.
func (s *MessageStream) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the Manager, waiting for it, and then tears the stream down. Frames still
// queued are discarded. Safe to call more than once.
func (s *MessageStream) Cancel() {
	s.cancelOnce.Do(func() {
		s.stop()
		s.close()
	})
}

func (s *MessageStream) push(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, text)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *MessageStream) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()

		close(s.done)
	})
}

func (s *MessageStream) pump() {
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue[0] = ""
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- next:
			case <-s.done:
				return
			}
		}
	}
}
