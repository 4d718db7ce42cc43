// Package registry maps opaque handle IDs to native resources.
//
// A Registry owns the only reference to each value it holds. IDs are minted
// on Insert and are never reused; once Remove returns a value its ID stays
// invalid forever. The mutex is held for the map operation alone, so callers
// must copy the value out with Get and release it before doing any I/O.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tomyedwab/libsqlshim/sqlproxy/types"
)

type Registry[T any] struct {
	name    string
	mu      sync.Mutex
	entries map[string]T
}

// New creates an empty registry. name appears in HandleGone messages.
func New[T any](name string) *Registry[T] {
	return &Registry[T]{
		name:    name,
		entries: make(map[string]T),
	}
}

// Insert stores value under a freshly generated ID and returns the ID.
func (r *Registry[T]) Insert(value T) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = value
	return id
}

// Get returns the value stored under id.
func (r *Registry[T]) Get(id string) (T, error) {
	r.mu.Lock()
	value, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return value, r.gone(id)
	}
	return value, nil
}

// Remove deletes id and hands its value back to the caller. A second Remove
// of the same id fails, which is what makes terminators single-use.
func (r *Registry[T]) Remove(id string) (T, error) {
	r.mu.Lock()
	value, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return value, r.gone(id)
	}
	return value, nil
}

func (r *Registry[T]) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// RemoveWhere deletes every entry matching pred in a single critical section
// and returns the removed values.
func (r *Registry[T]) RemoveWhere(pred func(id string, value T) bool) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []T
	for id, value := range r.entries {
		if pred(id, value) {
			removed = append(removed, value)
			delete(r.entries, id)
		}
	}
	return removed
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry[T]) gone(id string) error {
	return types.NewError(types.KindHandleGone, "%s %q not found or already released", r.name, id)
}
