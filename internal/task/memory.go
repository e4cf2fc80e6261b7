package task

import (
	"context"
	"fmt"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with a mutex for thread-safe access.
// Suitable for development and testing; use RedisRepository in production.
type MemoryRepository struct {
	mu   sync.RWMutex
	recs map[string]*Record
}

// NewMemoryRepository creates a new in-memory task repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		recs: make(map[string]*Record),
	}
}

// Save persists a record to the in-memory storage.
// Stores a clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.TaskID] = rec.Clone()
	return nil
}

// FindByTaskID retrieves a record by its task ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByTaskID(_ context.Context, taskID string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return rec.Clone(), nil
}

// Transition performs a compare-and-swap on the record's status.
// The read and conditional write happen under a single lock, so only one
// of any number of concurrent callers observes the from state.
func (r *MemoryRepository) Transition(_ context.Context, taskID string, from, to Status, up Update) (bool, error) {
	if !CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.recs[taskID]
	if !ok {
		return false, ErrTaskNotFound
	}
	if rec.Status != from {
		return false, nil
	}

	rec.Apply(to, up)
	return true, nil
}
