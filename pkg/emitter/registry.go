package emitter

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const initialSlots = 4

type slot[T any] struct {
	key      any
	listener T
}

// Registry is the ordered set of listeners behind one dispatcher instance.
// It is safe for concurrent use.
//
// Forwarding methods, generated or reflective, bracket their loop with Begin
// and End. Begin returns a copy of the listeners taken under the lock, so a
// listener added during a broadcast does not receive it and a listener
// removed during a broadcast never causes another one to be skipped or
// called twice.
type Registry[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	depth atomic.Int32
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{slots: make([]slot[T], 0, initialSlots)}
}

// Add registers listener with itself as the key.
func (r *Registry[T]) Add(listener T) {
	r.AddKeyed(listener, listener)
}

// AddKeyed appends listener under key. Registering two listeners under the
// same key is allowed; Remove then drops the earlier one first.
func (r *Registry[T]) AddKeyed(key any, listener T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.slots) == cap(r.slots) {
		grown := make([]slot[T], len(r.slots), grow(cap(r.slots)))
		copy(grown, r.slots)
		r.slots = grown
	}
	r.slots = append(r.slots, slot[T]{key: key, listener: listener})
}

// Subscribe registers listener under a fresh random key and returns it.
// Use it for listeners whose dynamic type is not comparable, such as
// function adapters, which Remove could never match by value.
func (r *Registry[T]) Subscribe(listener T) uuid.UUID {
	key := uuid.New()
	r.AddKeyed(key, listener)
	return key
}

// Remove unregisters the first listener added under key. It is a no-op if
// no listener has that key.
func (r *Registry[T]) Remove(key any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		if sameKey(r.slots[i].key, key) {
			copy(r.slots[i:], r.slots[i+1:])
			var zero slot[T]
			r.slots[len(r.slots)-1] = zero
			r.slots = r.slots[:len(r.slots)-1]
			return
		}
	}
}

// Len returns the number of registered listeners.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// IsFiring reports whether a broadcast is in progress, including nested
// broadcasts started from inside a listener.
func (r *Registry[T]) IsFiring() bool {
	return r.depth.Load() > 0
}

// Begin marks the start of a broadcast and returns the listeners to call, in
// registration order. Every Begin must be paired with a deferred End.
func (r *Registry[T]) Begin() []T {
	r.mu.Lock()
	listeners := make([]T, len(r.slots))
	for i := range r.slots {
		listeners[i] = r.slots[i].listener
	}
	r.mu.Unlock()

	r.depth.Add(1)
	return listeners
}

// End marks the end of a broadcast started with Begin.
func (r *Registry[T]) End() {
	r.depth.Add(-1)
}

func (r *Registry[T]) capacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cap(r.slots)
}

// grow returns the next backing store size: one and a half times the old.
func grow(n int) int {
	if n < 2 {
		return initialSlots
	}
	return n + n/2
}

// sameKey compares keys by value. Keys whose dynamic type is not comparable
// never match instead of panicking.
func sameKey(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	// Structs and arrays holding interfaces can still panic at run time.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
