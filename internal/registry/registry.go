// Package registry issues opaque session handles and owns the values
// registered under them.
package registry

import (
	"errors"
	"math"
	"sort"
	"sync"
)

// Handle is an opaque session identifier. Invalid (0) is never issued.
type Handle uint32

const Invalid Handle = 0

var (
	ErrHandlesExhausted   = errors.New("registry: handles exhausted")
	ErrHandleInvalid      = errors.New("registry: invalid handle")
	ErrHandleNotAllocated = errors.New("registry: handle not allocated")
	ErrHandleInUse        = errors.New("registry: handle already in use")
)

// Registry maps handles to values. Handles increase monotonically from 1
// and are never reused. Every method holds the lock for one table operation.
type Registry[T any] struct {
	mu    sync.RWMutex
	next  Handle
	items map[Handle]T
}

func New[T any]() *Registry[T] {
	return &Registry[T]{next: 1, items: make(map[Handle]T)}
}

// Allocate reserves the next handle. Allocated handles that are never
// inserted are simply skipped.
func (r *Registry[T]) Allocate() (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next == Invalid {
		return Invalid, ErrHandlesExhausted
	}
	h := r.next
	if h == math.MaxUint32 {
		r.next = Invalid
	} else {
		r.next++
	}
	return h, nil
}

// Insert installs v under a handle previously returned by Allocate.
func (r *Registry[T]) Insert(h Handle, v T) error {
	if h == Invalid {
		return ErrHandleInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next != Invalid && h >= r.next {
		return ErrHandleNotAllocated
	}
	if _, ok := r.items[h]; ok {
		return ErrHandleInUse
	}
	r.items[h] = v
	return nil
}

func (r *Registry[T]) Get(h Handle) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[h]
	return v, ok
}

// Remove deletes h and returns the value it held.
func (r *Registry[T]) Remove(h Handle) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[h]
	if ok {
		delete(r.items, h)
	}
	return v, ok
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Handles returns the live handles in ascending order.
func (r *Registry[T]) Handles() []Handle {
	r.mu.RLock()
	out := make([]Handle, 0, len(r.items))
	for h := range r.items {
		out = append(out, h)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
