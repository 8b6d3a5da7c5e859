// Package registry tracks active calls by their bridge-assigned call ID and
// the carrier's call control ID.
package registry

import (
	"fmt"
	"sync"
)

// Keyed is implemented by records stored in a [Registry]. CallID is the
// bridge-assigned identifier used as the primary key; ControlID is the
// carrier's call control identifier, which may be assigned after the record
// is added.
type Keyed interface {
	CallID() string
	ControlID() string
}

// Registry is a concurrency-safe store of active call records.
// The zero value is not usable; create one with [New].
type Registry[T Keyed] struct {
	mu    sync.RWMutex
	calls map[string]T
}

// New returns an empty, ready-to-use [Registry].
func New[T Keyed]() *Registry[T] {
	return &Registry[T]{calls: make(map[string]T)}
}

// Add stores rec under its call ID. It returns an error if a record with the
// same call ID is already present.
func (r *Registry[T]) Add(rec T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := rec.CallID()
	if _, ok := r.calls[id]; ok {
		return fmt.Errorf("registry: call %q already registered", id)
	}
	r.calls[id] = rec
	return nil
}

// Get returns the record for the given call ID.
func (r *Registry[T]) Get(callID string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.calls[callID]
	return rec, ok
}

// ByControlID returns the record whose carrier control ID matches.
// Control IDs are only known after the carrier accepts the dial, so records
// with an empty control ID never match.
func (r *Registry[T]) ByControlID(controlID string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if controlID != "" {
		for _, rec := range r.calls {
			if rec.ControlID() == controlID {
				return rec, true
			}
		}
	}
	var zero T
	return zero, false
}

// Remove deletes and returns the record for the given call ID. The second
// return value is false if the record was already removed, which makes
// Remove usable as an idempotency gate for call completion.
func (r *Registry[T]) Remove(callID string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.calls[callID]
	if ok {
		delete(r.calls, callID)
	}
	return rec, ok
}

// All returns a snapshot of every registered record, in no particular order.
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, 0, len(r.calls))
	for _, rec := range r.calls {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of registered calls.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}
