// Package registry provides an ordered, concurrently accessed collection of
// guarded objects.
//
// Clear is the fleet-wide cancellation point: every element is invalidated
// before the collection is emptied, so work still running against an old
// element notices at its next validity check and drains on its own.
package registry

import (
	"sync"

	"github.com/yndnr/onvifmesh-go/pkg/cmap"
	"github.com/yndnr/onvifmesh-go/pkg/guard"
)

// Element is a guarded object stored by identity, typically a pointer.
type Element interface {
	comparable
	guard.Guarded
}

// KeyFunc extracts the identity used for duplicate checks.
type KeyFunc[T any] func(T) string

// Registry is a thread-safe ordered list of guarded objects with an
// optional key index.
type Registry[T Element] struct {
	mu    sync.RWMutex
	items []T

	key   KeyFunc[T]
	index *cmap.Map[string, T]
}

// New creates an empty registry. If key is non-nil, elements are indexed by
// it and Contains/Lookup become available.
func New[T Element](key func(T) string) *Registry[T] {
	r := &Registry[T]{key: key}
	if key != nil {
		r.index = cmap.New[string, T]()
	}
	return r
}

// Add appends obj and returns the new count. obj must be fully constructed.
//
// In a keyed registry an element already registered under obj's key is
// invalidated and obj takes its position. As with Clear, the replaced
// element's destroy callback must not call back into the registry.
func (r *Registry[T]) Add(obj T) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index == nil {
		r.items = append(r.items, obj)
		return len(r.items)
	}

	old, replaced := r.index.Swap(r.key(obj), obj)
	if !replaced {
		r.items = append(r.items, obj)
		return len(r.items)
	}
	if old == obj {
		return len(r.items)
	}
	if i := r.indexOfLocked(old); i >= 0 {
		r.items[i] = obj
	} else {
		r.items = append(r.items, obj)
	}
	old.Invalidate()
	return len(r.items)
}

// AddUnique appends obj unless an element with the same key is present.
// It reports whether obj was added along with the resulting count.
func (r *Registry[T]) AddUnique(obj T) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index != nil && !r.index.SetIfAbsent(r.key(obj), obj) {
		return len(r.items), false
	}
	r.items = append(r.items, obj)
	return len(r.items), true
}

// Get returns the element at position i.
func (r *Registry[T]) Get(i int) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if i < 0 || i >= len(r.items) {
		return zero, false
	}
	return r.items[i], true
}

// Count returns the number of elements.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Contains reports whether an element with the given key is registered.
func (r *Registry[T]) Contains(key string) bool {
	if r.index == nil {
		return false
	}
	return r.index.Has(key)
}

// Lookup returns the element registered under key.
func (r *Registry[T]) Lookup(key string) (T, bool) {
	if r.index == nil {
		var zero T
		return zero, false
	}
	return r.index.Get(key)
}

// Find returns the first element matching pred.
func (r *Registry[T]) Find(pred func(T) bool) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.items {
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Snapshot returns a copy of the current elements in insertion order.
func (r *Registry[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Remove invalidates and removes the element with the given key.
func (r *Registry[T]) Remove(key string) (T, bool) {
	var zero T
	if r.index == nil {
		return zero, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	obj, ok := r.index.Pop(key)
	if !ok {
		return zero, false
	}
	if i := r.indexOfLocked(obj); i >= 0 {
		r.items = append(r.items[:i], r.items[i+1:]...)
	}
	obj.Invalidate()
	return obj, true
}

func (r *Registry[T]) indexOfLocked(obj T) int {
	for i, item := range r.items {
		if item == obj {
			return i
		}
	}
	return -1
}

// Clear invalidates every element, then removes them all. It returns the
// number of removed elements.
//
// Destroy callbacks of unreferenced elements run inside Clear; they must not
// call back into the registry.
func (r *Registry[T]) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.items {
		item.Invalidate()
	}
	n := len(r.items)
	clear(r.items)
	r.items = r.items[:0]
	if r.index != nil {
		r.index.Clear()
	}
	return n
}
