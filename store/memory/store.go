// Package memory provides a fully in-memory job store. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"seatwatch"
	"seatwatch/budget"
	"seatwatch/id"
	"seatwatch/job"
)

var _ job.Store = (*Store)(nil)

// Store keeps all job records in a map guarded by one RWMutex.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		jobs: make(map[string]*job.Job),
		now:  budget.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Create persists a new job record.
func (s *Store) Create(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := j.ID.String()
	if _, exists := s.jobs[key]; exists {
		return seatwatch.ErrJobAlreadyExists
	}
	now := s.now()
	cp := cloneJob(j)
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.jobs[key] = cp
	j.CreatedAt = now
	j.UpdatedAt = now
	return nil
}

// Get retrieves a job by ID.
func (s *Store) Get(_ context.Context, jobID id.ID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, seatwatch.ErrJobNotFound
	}
	return cloneJob(j), nil
}

// UpdateStatus applies a conditional transition. Terminal records are
// never overwritten, which keeps cancellation idempotent.
func (s *Store) UpdateStatus(_ context.Context, jobID id.ID, u job.StatusUpdate) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, seatwatch.ErrJobNotFound
	}
	if j.Status.Terminal() {
		return nil, seatwatch.ErrJobTerminal
	}

	now := s.now()
	j.Status = u.Status
	if u.RetryCount != nil {
		j.RetryCount = *u.RetryCount
	}
	if u.Result != nil {
		j.Result = u.Result
	}
	if u.Error != "" {
		j.Error = u.Error
	}
	if u.CancelReason != "" {
		j.CancelReason = u.CancelReason
	}
	if u.Status.Terminal() && j.CompletedAt == nil {
		t := now
		j.CompletedAt = &t
	}
	j.UpdatedAt = now
	return cloneJob(j), nil
}

// ListByOwner returns the owner's jobs, newest first.
func (s *Store) ListByOwner(_ context.Context, ownerID string, opts job.ListOpts) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*job.Job
	for _, j := range s.jobs {
		if j.OwnerID != ownerID {
			continue
		}
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ListStaleWaiting returns waiting jobs whose deadline is before the
// given instant.
func (s *Store) ListStaleWaiting(_ context.Context, before time.Time) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*job.Job
	for _, j := range s.jobs {
		if j.Status != job.StatusWaiting {
			continue
		}
		if !j.Deadline.Before(before) {
			continue
		}
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].Deadline.Before(out[k].Deadline)
	})
	return out, nil
}

// cloneJob copies a record so callers can mutate without racing with
// the store.
func cloneJob(j *job.Job) *job.Job {
	cp := *j
	if j.TargetTimes != nil {
		cp.TargetTimes = append([]string(nil), j.TargetTimes...)
	}
	if j.Result != nil {
		cp.Result = append([]byte(nil), j.Result...)
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
