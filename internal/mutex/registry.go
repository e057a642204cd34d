// Package mutex provides a keyed advisory lock registry.
//
// Locks are non-blocking and non-reentrant. A key that was never locked, or
// whose lock was released, is unlocked. The registry does not track owners:
// whoever locked a key is expected to release it, either directly or through
// a timed release.
package mutex

import (
	"sync"
	"time"
)

// Registry is a set of advisory locks keyed by K.
type Registry[K comparable] struct {
	mu     sync.Mutex
	locked map[K]*entry
}

type entry struct {
	timer *time.Timer
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{
		mu:     sync.Mutex{},
		locked: make(map[K]*entry),
	}
}

// TryLock acquires key and reports whether it was free.
func (r *Registry[K]) TryLock(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.locked[key]; ok {
		return false
	}

	r.locked[key] = &entry{timer: nil}

	return true
}

// Lock marks key as locked whether or not it already was.
// Pending timed releases for key are cancelled.
func (r *Registry[K]) Lock(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.locked[key]; ok && e.timer != nil {
		e.timer.Stop()
	}

	r.locked[key] = &entry{timer: nil}
}

// Unlock releases key immediately. Unlocking a free key is a no-op.
func (r *Registry[K]) Unlock(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.locked[key]; ok && e.timer != nil {
		e.timer.Stop()
	}

	delete(r.locked, key)
}

// UnlockAfter schedules the release of key after d without blocking.
// A later UnlockAfter on the same key replaces the earlier schedule.
// If key is relocked in the meantime the stale timer leaves it alone.
func (r *Registry[K]) UnlockAfter(key K, d time.Duration) {
	if d <= 0 {
		r.Unlock(key)

		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.locked[key]
	if !ok {
		return
	}

	if e.timer != nil {
		e.timer.Stop()
	}

	e.timer = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if current, ok := r.locked[key]; ok && current == e {
			delete(r.locked, key)
		}
	})
}

// IsLocked reports whether key is currently held.
func (r *Registry[K]) IsLocked(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.locked[key]

	return ok
}

// TakeLocked releases key and reports whether it was held. It is used for
// one-shot flags where checking and clearing must not race.
func (r *Registry[K]) TakeLocked(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.locked[key]
	if !ok {
		return false
	}

	if e.timer != nil {
		e.timer.Stop()
	}

	delete(r.locked, key)

	return true
}

// Len returns the number of held keys.
func (r *Registry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.locked)
}
