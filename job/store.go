package job

import (
	"context"
	"encoding/json"
	"time"

	"seatwatch/id"
)

// ListOpts controls filtering and pagination for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// Status filters by job status. Empty means all statuses.
	Status Status
}

// StatusUpdate describes a conditional status transition. Nil/zero fields
// are left untouched.
type StatusUpdate struct {
	Status       Status
	RetryCount   *int
	Result       json.RawMessage
	Error        string
	CancelReason CancelReason
}

// Store is the persistence contract for jobs. It is the single source of
// truth for job status.
//
// Implementations must provide atomic single-record update semantics:
// UpdateStatus never overwrites a terminal status and sets CompletedAt
// exactly once, so concurrent writers degrade to last-writer-wins on
// non-terminal fields and cancellation stays idempotent.
type Store interface {
	// Create persists a new job record. Returns
	// seatwatch.ErrJobAlreadyExists on a duplicate ID.
	Create(ctx context.Context, j *Job) error

	// Get retrieves a job by ID. Returns seatwatch.ErrJobNotFound when
	// absent.
	Get(ctx context.Context, jobID id.ID) (*Job, error)

	// UpdateStatus applies a conditional transition and returns the
	// updated record. When the job is already in a terminal status it
	// changes nothing and returns seatwatch.ErrJobTerminal. A transition
	// into a terminal status sets CompletedAt.
	UpdateStatus(ctx context.Context, jobID id.ID, u StatusUpdate) (*Job, error)

	// ListByOwner returns the owner's jobs, newest first.
	ListByOwner(ctx context.Context, ownerID string, opts ListOpts) ([]*Job, error)

	// ListStaleWaiting returns waiting jobs whose deadline is before the
	// given instant. The maintenance sweep uses this to retire records
	// the queue has abandoned.
	ListStaleWaiting(ctx context.Context, before time.Time) ([]*Job, error)

	// Ping verifies the backing resource is reachable.
	Ping(ctx context.Context) error
}
