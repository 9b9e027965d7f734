// Package history provides utilities shared across run-history store
// implementations, including the Store interface, the Record type, and
// sentinel errors.
//
// A Record captures the outcome of one executed batch: the aggregated log,
// the exit status, and timing. Store adapters exist for in-memory use
// (pkg/history/memory) and PostgreSQL (pkg/history/postgres).
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for history operations.
var (
	// ErrNotFound is returned when a run does not exist.
	ErrNotFound = errors.New("run not found")

	// ErrConflict is returned when a run with the given ID already exists.
	ErrConflict = errors.New("run already exists")
)

// Record is the persisted outcome of one executed batch.
type Record struct {
	// ID is the run identifier ("run_" + UUID).
	ID string `json:"id"`

	// Runtime is the pool runtime the batch executed against.
	Runtime string `json:"runtime"`

	// Fragments is the number of fragments in the batch.
	Fragments int `json:"fragments"`

	// Log is the aggregated batch log.
	Log string `json:"log"`

	// ExitCode is the aggregated exit status (0 = success).
	ExitCode int `json:"exit_code"`

	// Duration is the wall-clock time the batch took.
	Duration time.Duration `json:"duration"`

	// CreatedAt is when the batch completed, in UTC.
	CreatedAt time.Time `json:"created_at"`
}

// NewRunID generates a new run identifier.
func NewRunID() string {
	return "run_" + uuid.NewString()
}

// Store persists batch run records.
type Store interface {
	// Type identifies the store implementation ("memory", "postgres")
	// for logging and metrics.
	Type() string

	// SaveRun persists a record. Returns ErrConflict when the ID exists.
	SaveRun(ctx context.Context, rec *Record) error

	// GetRun retrieves a record by ID. Returns ErrNotFound when absent.
	GetRun(ctx context.Context, id string) (*Record, error)

	// ListRuns returns the most recent records, newest first, up to limit
	// (0 = no limit).
	ListRuns(ctx context.Context, limit int) ([]*Record, error)

	// DeleteRun removes a record by ID. Returns ErrNotFound when absent.
	DeleteRun(ctx context.Context, id string) error

	// Close releases resources held by the store.
	Close() error
}
