// Package history keeps a ledger of optimization runs.
package history

import (
	"context"
	"time"
)

// Run summarizes one optimize request. The optimizer's full result is not
// kept, only what is needed to compare runs later.
type Run struct {
	ID            string         `json:"id"`
	AlgorithmID   string         `json:"algorithmId"`
	Algorithm     string         `json:"algorithm"`
	Success       bool           `json:"success"`
	Applied       bool           `json:"applied"`
	ExecutionTime int64          `json:"executionTime"`
	Message       string         `json:"message,omitempty"`
	Violations    int            `json:"violations"`
	Metrics       map[string]int `json:"metrics,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Store provides read/write access to the run ledger.
type Store interface {
	// Record appends a run. CreatedAt is set when zero.
	Record(ctx context.Context, run Run) error

	// List returns up to limit runs, newest first.
	// Returns ErrInvalidLimit if limit is not positive.
	List(ctx context.Context, limit int) ([]Run, error)

	// Get returns a run by id.
	// Returns ErrNotFound if the run is unknown.
	Get(ctx context.Context, id string) (Run, error)

	// Count returns the number of recorded runs.
	Count(ctx context.Context) (int, error)
}
