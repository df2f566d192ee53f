package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// OrderedSet is a concurrent set that remembers insertion order.
// Items are keyed by their String form. Readers take a snapshot without
// locking; writers serialize among themselves.
type OrderedSet[T fmt.Stringer] struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	items atomic.Pointer[[]T]
}

// NewOrderedSet returns an empty set.
func NewOrderedSet[T fmt.Stringer]() *OrderedSet[T] {
	return &OrderedSet[T]{seen: make(map[string]struct{})}
}

// Add inserts item unless an item with the same key is present.
// It reports whether the item was added.
func (s *OrderedSet[T]) Add(item T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := item.String()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}

	var next []T
	if cur := s.items.Load(); cur != nil {
		next = make([]T, len(*cur), len(*cur)+1)
		copy(next, *cur)
	}
	next = append(next, item)
	s.items.Store(&next)
	return true
}

// Items returns the items in insertion order. The slice must not be modified.
func (s *OrderedSet[T]) Items() []T {
	if cur := s.items.Load(); cur != nil {
		return *cur
	}
	return nil
}

// Len returns the number of items.
func (s *OrderedSet[T]) Len() int {
	return len(s.Items())
}
