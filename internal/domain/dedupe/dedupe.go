// Package dedupe tracks idempotency keys so a retried request replays its
// recorded outcome instead of applying twice.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the outcome of reserving a key.
type State int

const (
	// StateNew means the key was unseen and is now reserved by the caller.
	StateNew State = iota
	// StateInFlight means another caller holds the key and has not finished.
	StateInFlight
	// StateDone means the key completed; the recorded value is returned.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInFlight:
		return "in_flight"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// node is one tracked key in insertion order.
type node[T any] struct {
	key   string
	done  bool
	value T
	prev  *node[T]
	next  *node[T]
}

// Registry remembers idempotency keys and the values they produced.
// Bounded registries evict the oldest completed key first; in-flight keys
// are never evicted, so the registry may exceed its bound while every
// tracked key is in flight.
type Registry[T any] struct {
	mu      sync.Mutex
	seen    map[string]*node[T]
	head    *node[T] // oldest
	tail    *node[T] // newest
	maxSize int      // 0 or negative means unbounded
	size    atomic.Int64
}

// New creates a registry with configuration options.
func New[T any](opts ...Option) *Registry[T] {
	s := settings{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&s)
	}
	return &Registry[T]{
		seen:    make(map[string]*node[T]),
		maxSize: s.maxSize,
	}
}

// Reserve atomically looks key up and reserves it when unseen.
// A StateNew caller must later call Complete or Release.
func (r *Registry[T]) Reserve(_ context.Context, key string) (T, State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.seen[key]; ok {
		if n.done {
			return n.value, StateDone
		}
		var zero T
		return zero, StateInFlight
	}

	if r.maxSize > 0 && len(r.seen) >= r.maxSize {
		r.evictOldest()
	}
	n := &node[T]{key: key, prev: r.tail}
	if r.tail != nil {
		r.tail.next = n
	} else {
		r.head = n
	}
	r.tail = n
	r.seen[key] = n
	r.size.Add(1)

	var zero T
	return zero, StateNew
}

// Complete records value for a reserved key. Unknown keys are ignored.
func (r *Registry[T]) Complete(_ context.Context, key string, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.seen[key]; ok {
		n.done = true
		n.value = value
	}
}

// Release forgets key so it can be retried, typically after a failure.
func (r *Registry[T]) Release(_ context.Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.seen[key]; ok {
		r.unlink(n)
	}
}

// Size returns the number of tracked keys.
func (r *Registry[T]) Size() int64 {
	return r.size.Load()
}

// evictOldest drops the oldest completed key. Must be called with r.mu held.
func (r *Registry[T]) evictOldest() {
	for n := r.head; n != nil; n = n.next {
		if n.done {
			r.unlink(n)
			return
		}
	}
}

// unlink removes n from the list and map. Must be called with r.mu held.
func (r *Registry[T]) unlink(n *node[T]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		r.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		r.tail = n.prev
	}
	n.prev, n.next = nil, nil
	delete(r.seen, n.key)
	r.size.Add(-1)
}
