package job

import (
	"encoding/json"
	"time"

	"seatwatch"
	"seatwatch/id"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusWaiting means the job is waiting for its next attempt.
	StatusWaiting Status = "waiting"
	// StatusActive means a worker is currently executing an attempt.
	StatusActive Status = "active"
	// StatusCompleted means seats were found.
	StatusCompleted Status = "completed"
	// StatusFailed means an attempt hit an unexpected error and the job
	// will not be retried.
	StatusFailed Status = "failed"
	// StatusCancelled means the job was retired without finding seats,
	// either by the owner or because the departure time passed.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CancelReason is the closed set of reasons recorded on cancellation.
type CancelReason string

const (
	// ReasonUserCancelled means the owner cancelled the job.
	ReasonUserCancelled CancelReason = "USER_CANCELLED"
	// ReasonNoSeatsFound means the departure time passed (or the attempt
	// budget ran out) without seats being found.
	ReasonNoSeatsFound CancelReason = "NO_SEATS_FOUND"
)

// Job represents one user's seat-watch request.
type Job struct {
	seatwatch.Entity

	ID      id.ID  `json:"id"`
	OwnerID string `json:"owner_id"`

	// Route and target window, as submitted.
	DepartureCd string   `json:"departure_cd"`
	ArrivalCd   string   `json:"arrival_cd"`
	TargetMonth string   `json:"target_month"` // e.g. "11월"
	TargetDate  string   `json:"target_date"`  // e.g. "18"
	TargetTimes []string `json:"target_times"` // sorted, unique HH:MM

	// Deadline is the KST instant of the last target time, fixed at
	// submission. Attempts is the retry budget derived from it.
	Deadline time.Time `json:"deadline"`
	Attempts int       `json:"attempts"`

	Status       Status          `json:"status"`
	RetryCount   int             `json:"retry_count"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	CancelReason CancelReason    `json:"cancel_reason,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Route renders the terminal pair for logs and span attributes.
func (j *Job) Route() string {
	return j.DepartureCd + "→" + j.ArrivalCd
}
