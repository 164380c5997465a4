package querycache

import (
	"context"
	"errors"
	"sync"
)

// MutationStatus is the lifecycle stage of a mutation.
type MutationStatus int

// Mutation stages.
const (
	Idle MutationStatus = iota
	Pending
	Success
	Failure
)

func (s MutationStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// MutationState is an observable snapshot of a mutation.
type MutationState[T any] struct {
	Status MutationStatus
	Data   T
	Err    error
}

// ErrMutationPending is returned when Execute is called while a previous
// call is still running.
var ErrMutationPending = errors.New("querycache: mutation already pending")

// Mutation runs a write against the backend and invalidates the cache keys
// it affects once the write succeeds.
type Mutation[T any] struct {
	cache      *Cache
	fn         func(ctx context.Context) (T, error)
	invalidate func(T) []Key

	mu    sync.Mutex
	state MutationState[T]
}

// NewMutation binds fn to cache. invalidate may be nil; otherwise it returns
// the key prefixes to invalidate after a successful run.
func NewMutation[T any](cache *Cache, fn func(ctx context.Context) (T, error), invalidate func(T) []Key) *Mutation[T] {
	return &Mutation[T]{cache: cache, fn: fn, invalidate: invalidate}
}

// Execute runs the mutation. On success the declared keys are invalidated.
// On failure the error is stored and no cache entry is touched.
func (m *Mutation[T]) Execute(ctx context.Context) (T, error) {
	m.mu.Lock()
	if m.state.Status == Pending {
		m.mu.Unlock()
		var zero T
		return zero, ErrMutationPending
	}
	m.state = MutationState[T]{Status: Pending}
	m.mu.Unlock()

	data, err := m.fn(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = MutationState[T]{Status: Failure, Err: err}
		var zero T
		return zero, err
	}
	m.state = MutationState[T]{Status: Success, Data: data}
	if m.invalidate != nil && m.cache != nil {
		m.cache.Invalidate(m.invalidate(data)...)
	}
	return data, nil
}

// State returns the current snapshot.
func (m *Mutation[T]) State() MutationState[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset returns a settled mutation to Idle. A pending mutation is left
// alone.
func (m *Mutation[T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Status != Pending {
		m.state = MutationState[T]{}
	}
}
