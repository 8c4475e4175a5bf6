package relink

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventEmitter_SingleListener(t *testing.T) {
	emitter := NewEventEmitter[string, int]()
	var results []int

	emitter.On("event", func(data int) {
		results = append(results, data)
	})

	emitter.Emit("event", 42)
	emitter.Emit("other", 7)

	assert.Equal(t, []int{42}, results)
}

func TestEventEmitter_RegistrationOrder(t *testing.T) {
	emitter := NewEventEmitter[string, int]()
	var results []int

	emitter.On("event", func(data int) { results = append(results, data) })
	emitter.OnAny(func(data int) { results = append(results, data*10) })
	emitter.On("event", func(data int) { results = append(results, data*2) })

	emitter.Emit("event", 1)
	emitter.Emit("other", 5)

	// specific listeners first, then catch-all ones
	assert.Equal(t, []int{1, 2, 10, 50}, results)
}

func TestEventEmitter_Off(t *testing.T) {
	emitter := NewEventEmitter[string, int]()
	var calls int

	off := emitter.On("event", func(int) { calls++ })
	offAny := emitter.OnAny(func(int) { calls++ })

	emitter.Emit("event", 0)
	off()
	offAny()
	emitter.Emit("event", 0)

	assert.Equal(t, 2, calls)
}

func TestEventEmitter_ListenerMayRegister(t *testing.T) {
	emitter := NewEventEmitter[string, int]()
	var calls int

	emitter.On("event", func(int) {
		emitter.On("event", func(int) { calls++ })
	})

	emitter.Emit("event", 0)
	assert.Equal(t, 0, calls)

	emitter.Emit("event", 0)
	assert.Equal(t, 1, calls)
}

func TestEventEmitter_Close(t *testing.T) {
	emitter := NewEventEmitter[string, int]()
	var calls int

	emitter.On("event", func(int) { calls++ })
	emitter.OnAny(func(int) { calls++ })
	emitter.Close()
	emitter.Emit("event", 0)

	assert.Zero(t, calls)
}

func TestEventEmitter_Concurrent(t *testing.T) {
	emitter := NewEventEmitter[string, int]()
	var (
		mu      sync.Mutex
		results []int
		wg      sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			emitter.On("event", func(data int) {
				mu.Lock()
				results = append(results, data+i)
				mu.Unlock()
			})
		}(i)
	}
	wg.Wait()

	for j := 0; j < 10; j++ {
		wg.Add(1)
		go func(j int) {
			defer wg.Done()
			emitter.Emit("event", j)
		}(j)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, results, 100)
}
