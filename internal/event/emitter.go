package event

import "fmt"

// Emitter is a typed, per-entity notification channel. Listeners are called
// synchronously in registration order on the goroutine that calls Fire.
//
// Emitter does no locking: it belongs to a single owner (a plan or a step) that
// is driven by one producer. Listeners must not mutate the emitting entity from
// inside their callback.
type Emitter[T any] struct {
	name      string
	listeners []listener[T]
	nextID    uint64
	disposed  bool
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// NewEmitter creates an Emitter. name is used only when logging handler panics.
func NewEmitter[T any](name string) *Emitter[T] {
	return &Emitter[T]{name: name}
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless. Subscribing to a
// disposed emitter returns a no-op unsubscribe and fn is never called.
func (e *Emitter[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if e.disposed || fn == nil {
		return func() {}
	}
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener[T]{id: id, fn: fn})

	return func() {
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Fire delivers v to every current listener. Listeners added or removed while
// firing take effect from the next Fire.
func (e *Emitter[T]) Fire(v T) {
	if e.disposed || len(e.listeners) == 0 {
		return
	}
	snapshot := make([]listener[T], len(e.listeners))
	copy(snapshot, e.listeners)

	for _, l := range snapshot {
		safeCall(e.name, func() { l.fn(v) })
	}
}

// Dispose drops every listener. Later Fire and Subscribe calls are no-ops.
func (e *Emitter[T]) Dispose() {
	e.disposed = true
	e.listeners = nil
}

// IsDisposed reports whether Dispose was called.
func (e *Emitter[T]) IsDisposed() bool {
	return e.disposed
}

// ListenerCount returns the number of registered listeners.
func (e *Emitter[T]) ListenerCount() int {
	return len(e.listeners)
}

// String implements fmt.Stringer for debugging output.
func (e *Emitter[T]) String() string {
	return fmt.Sprintf("Emitter(%s, listeners=%d, disposed=%t)", e.name, len(e.listeners), e.disposed)
}
