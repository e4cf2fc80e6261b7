package task

import (
	"context"
	"errors"
)

// ErrTaskNotFound is returned when a record cannot be found by task ID.
var ErrTaskNotFound = errors.New("task not found")

// Repository defines the interface for task persistence.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Save persists a record. If the record already exists, it is replaced.
	Save(ctx context.Context, rec *Record) error

	// FindByTaskID retrieves a record by its task ID.
	// Returns ErrTaskNotFound if the record does not exist.
	FindByTaskID(ctx context.Context, taskID string) (*Record, error)

	// Transition performs a conditional status update: the write happens only
	// if the record's current status equals from. Returns true when the write
	// was applied and false (with nil error) when another caller got there
	// first. This is the guard that keeps terminal transitions idempotent
	// under concurrent polls.
	Transition(ctx context.Context, taskID string, from, to Status, up Update) (bool, error)
}
