package alpine

import (
	"context"
	"sync"
	"time"
)

// TestBus creates a new bus configured for testing, with tracing and
// metrics disabled. opts are applied after the test defaults.
// Panics if the bus cannot be created (test setup error).
//
// Example:
//
//	bus := alpine.TestBus(alpine.WithSuperListeners())
func TestBus(opts ...BusOption) *Bus {
	all := append([]BusOption{
		WithBusTracing(false),
		WithBusMetrics(false),
	}, opts...)
	bus, err := NewBus("test-bus", all...)
	if err != nil {
		panic("alpine.TestBus: " + err.Error())
	}
	return bus
}

// Recorder is a helper for testing listeners.
// It collects all events its listener receives for later assertions.
type Recorder[T any] struct {
	mu       sync.Mutex
	received []RecorderCall[T]
	handler  func(context.Context, T) error
}

// RecorderCall represents a single call to the recorder's listener
type RecorderCall[T any] struct {
	Context context.Context
	Event   T
	Time    time.Time
}

// NewRecorder creates a new recorder.
// If handler is nil, the listener accepts every event.
func NewRecorder[T any](handler func(context.Context, T) error) *Recorder[T] {
	return &Recorder[T]{
		received: make([]RecorderCall[T], 0),
		handler:  handler,
	}
}

// Listener returns a listener that records each event before calling the
// handler. Every call returns a new listener sharing the same record.
func (r *Recorder[T]) Listener(opts ...ListenerOption) *Listener {
	return NewListener(func(ctx context.Context, ev T) error {
		r.mu.Lock()
		r.received = append(r.received, RecorderCall[T]{
			Context: ctx,
			Event:   ev,
			Time:    time.Now(),
		})
		r.mu.Unlock()

		if r.handler != nil {
			return r.handler(ctx, ev)
		}
		return nil
	}, opts...)
}

// Received returns a copy of all received calls
func (r *Recorder[T]) Received() []RecorderCall[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]RecorderCall[T], len(r.received))
	copy(result, r.received)
	return result
}

// Events returns the received events in order
func (r *Recorder[T]) Events() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]T, 0, len(r.received))
	for _, c := range r.received {
		result = append(result, c.Event)
	}
	return result
}

// Count returns the number of calls received
func (r *Recorder[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

// Last returns the last received call, or nil if none
func (r *Recorder[T]) Last() *RecorderCall[T] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.received) == 0 {
		return nil
	}
	call := r.received[len(r.received)-1]
	return &call
}

// Reset clears all received calls
func (r *Recorder[T]) Reset() {
	r.mu.Lock()
	r.received = make([]RecorderCall[T], 0)
	r.mu.Unlock()
}

// WaitFor waits until the recorder has received at least n calls or timeout is reached.
// Returns true if the expected count was reached, false on timeout.
func (r *Recorder[T]) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.Count() >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}
