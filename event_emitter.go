package relink

import (
	"sync"
)

type callback[T any] func(T)

type subscription[V any] struct {
	id int
	fn callback[V]
}

// EventEmitter maps events of type K to callbacks receiving a V. Callbacks run synchronously,
// in registration order, on the goroutine calling Emit.
type EventEmitter[K comparable, V any] struct {
	lock      sync.RWMutex
	nextID    int
	listeners map[K][]subscription[V]
	catchAll  []subscription[V]
}

func NewEventEmitter[K comparable, V any]() *EventEmitter[K, V] {
	return &EventEmitter[K, V]{
		listeners: make(map[K][]subscription[V]),
	}
}

// On registers listener for event and returns a function that removes it.
func (e *EventEmitter[K, V]) On(event K, listener callback[V]) (off func()) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], subscription[V]{id: id, fn: listener})

	return func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		e.listeners[event] = remove(e.listeners[event], id)
	}
}

// OnAny registers listener for every event.
func (e *EventEmitter[K, V]) OnAny(listener callback[V]) (off func()) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.nextID++
	id := e.nextID
	e.catchAll = append(e.catchAll, subscription[V]{id: id, fn: listener})

	return func() {
		e.lock.Lock()
		defer e.lock.Unlock()
		e.catchAll = remove(e.catchAll, id)
	}
}

// Emit calls every listener registered for event, then every catch-all listener. The listener
// set is snapshotted first, so listeners may register or remove listeners themselves.
func (e *EventEmitter[K, V]) Emit(event K, data V) {
	e.lock.RLock()
	subs := make([]subscription[V], 0, len(e.listeners[event])+len(e.catchAll))
	subs = append(subs, e.listeners[event]...)
	subs = append(subs, e.catchAll...)
	e.lock.RUnlock()

	for _, s := range subs {
		s.fn(data)
	}
}

// Close removes all listeners.
func (e *EventEmitter[K, V]) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.listeners = make(map[K][]subscription[V])
	e.catchAll = nil
}

func remove[V any](subs []subscription[V], id int) []subscription[V] {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
