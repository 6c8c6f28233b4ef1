// Package registry holds the process-global set of live runtime instances.
//
// All mutation and ordinary iteration happen under the registry's spinlock.
// The interrupt dispatcher additionally needs a read path that is safe in
// signal-handler context, where taking the lock is forbidden: for that the
// registry publishes an immutable snapshot slice, swapped atomically under
// the lock on every mutation. Snapshot readers may observe a view that is
// one mutation stale; that is the documented best-effort contract of the
// interrupt fallback lookup, not a bug.
package registry

import "sync/atomic"

// Registry is a lock-protected, insertion-ordered set of live entries.
// T is compared by identity (pointer equality for pointer types). Entries
// keep a stable id from Insert until Remove; iteration visits the most
// recently inserted entry first, matching the prepend semantics of the list
// it replaces.
type Registry[T comparable] struct {
	check func(cond bool, msg string)

	lock  SpinLock
	byID  map[uint64]T
	order []uint64 // most recent first

	snap atomic.Pointer[[]T]
}

// New creates an empty registry. check is the fatal-check collaborator used
// to enforce the lock-held and entry-present contracts.
func New[T comparable](check func(cond bool, msg string)) *Registry[T] {
	r := &Registry[T]{
		check: check,
		byID:  make(map[uint64]T),
	}
	r.snap.Store(new([]T))
	return r
}

// Lock takes the registry lock. Entries cannot appear or disappear while it
// is held. The lock is non-reentrant.
func (r *Registry[T]) Lock() {
	r.lock.Lock()
}

// Unlock releases the registry lock.
func (r *Registry[T]) Unlock() {
	r.lock.Unlock()
}

// Insert adds v at the front of the iteration order under the caller-chosen
// stable id. Inserting a duplicate id is an invariant violation. Insert
// takes the lock itself; the caller must not hold it.
func (r *Registry[T]) Insert(id uint64, v T) {
	r.lock.Lock()
	defer r.lock.Unlock()

	_, dup := r.byID[id]
	r.check(!dup, "registry id already present")
	r.byID[id] = v
	r.order = append([]uint64{id}, r.order...)
	r.publish()
}

// Remove unlinks v by identity scan. The caller must guarantee presence;
// removing an absent entry is an invariant violation. Remove takes the lock
// itself; the caller must not hold it.
func (r *Registry[T]) Remove(v T) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for i, id := range r.order {
		if r.byID[id] == v {
			delete(r.byID, id)
			r.order = append(r.order[:i], r.order[i+1:]...)
			r.publish()
			return
		}
	}
	r.check(false, "registry entry to remove is not present")
}

// Iterate visits live entries in order, stopping early when fn returns true.
// The caller must hold the registry lock for the duration.
func (r *Registry[T]) Iterate(fn func(v T) bool) {
	r.check(r.lock.Held(), "registry lock must be taken for iteration")
	for _, id := range r.order {
		if fn(r.byID[id]) {
			break
		}
	}
}

// Len returns the number of live entries. The caller must hold the lock.
func (r *Registry[T]) Len() int {
	r.check(r.lock.Held(), "registry lock must be taken for length")
	return len(r.order)
}

// Snapshot returns the current immutable view of the live set, most recent
// first. It takes no lock and allocates nothing, which makes it the only
// registry read permitted in signal-handler context. The view may be stale
// relative to concurrent mutation.
func (r *Registry[T]) Snapshot() []T {
	return *r.snap.Load()
}

// publish rebuilds the snapshot. Caller holds the lock.
func (r *Registry[T]) publish() {
	s := make([]T, len(r.order))
	for i, id := range r.order {
		s[i] = r.byID[id]
	}
	r.snap.Store(&s)
}
