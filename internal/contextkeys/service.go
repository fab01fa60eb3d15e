package contextkeys

import (
	"fmt"
	"maps"
	"sync"

	"github.com/Iron-Ham/aide/internal/errors"
	"github.com/Iron-Ham/aide/internal/event"
)

// Service holds the current value of every declared key. It is safe for
// concurrent use. Unset keys read as their declared default.
type Service struct {
	mu     sync.RWMutex
	values map[string]any
	bus    *event.Bus
}

// NewService creates a Service that publishes changes on bus. A nil bus
// disables publishing.
func NewService(bus *event.Bus) *Service {
	return &Service{
		values: make(map[string]any),
		bus:    bus,
	}
}

// Set stores v for k and reports whether the value changed. Values outside
// the key's enumerated set are rejected with errors.ErrContextKeyType.
func Set[T comparable](s *Service, k Key[T], v T) (bool, error) {
	if !k.Valid(v) {
		return false, fmt.Errorf("%w: %s does not accept %v", errors.ErrContextKeyType, k.Name, v)
	}
	return s.store(k.Name, k.Default, v), nil
}

// MustSet is Set for values known to be valid, such as the declared constants.
func MustSet[T comparable](s *Service, k Key[T], v T) bool {
	changed, err := Set(s, k, v)
	if err != nil {
		panic(err)
	}
	return changed
}

// Get returns the current value of k.
func Get[T comparable](s *Service, k Key[T]) T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[k.Name].(T); ok {
		return v
	}
	return k.Default
}

// Reset restores k to its default.
func Reset[T comparable](s *Service, k Key[T]) bool {
	return s.store(k.Name, k.Default, k.Default)
}

// ResetAll restores every key to its default, publishing a change for each
// key that was not already at its default.
func (s *Service) ResetAll() {
	for _, d := range All() {
		s.store(d.Name, d.Default, d.Default)
	}
}

// Snapshot returns the current value of every declared key.
func (s *Service) Snapshot() map[string]any {
	out := make(map[string]any, len(All()))
	for _, d := range All() {
		out[d.Name] = d.Default
	}
	s.mu.RLock()
	maps.Copy(out, s.values)
	s.mu.RUnlock()
	return out
}

// store must not be called with mu held. The bus is notified outside the lock.
func (s *Service) store(name string, def, v any) bool {
	s.mu.Lock()
	old, ok := s.values[name]
	if !ok {
		old = def
	}
	if old == v {
		s.mu.Unlock()
		return false
	}
	s.values[name] = v
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(event.NewContextKeyChangedEvent(name, old, v))
	}
	return true
}
