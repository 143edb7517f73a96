package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"seatwatch"
	"seatwatch/id"
	"seatwatch/job"
)

// terminalStatuses matches job.Status.Terminal. The conditional UPDATE
// excludes these so a terminal record is never overwritten.
var terminalStatuses = []string{
	string(job.StatusCompleted),
	string(job.StatusFailed),
	string(job.StatusCancelled),
}

// Create persists a new job record.
func (s *Store) Create(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return seatwatch.ErrJobAlreadyExists
		}
		return fmt.Errorf("seatwatch/bun: create job: %w", err)
	}
	j.CreatedAt = m.CreatedAt
	j.UpdatedAt = m.UpdatedAt
	return nil
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, jobID id.ID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, seatwatch.ErrJobNotFound
		}
		return nil, fmt.Errorf("seatwatch/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// UpdateStatus applies a conditional transition in a single UPDATE. The
// WHERE clause refuses terminal records, so cancellation is idempotent
// and a concurrent terminal transition wins.
func (s *Store) UpdateStatus(ctx context.Context, jobID id.ID, u job.StatusUpdate) (*job.Job, error) {
	m := new(jobModel)
	q := s.db.NewUpdate().Model(m).
		Set("status = ?", string(u.Status)).
		Set("updated_at = NOW()").
		Where("id = ?", jobID.String()).
		Where("status NOT IN (?)", bun.In(terminalStatuses)).
		Returning("*")

	if u.RetryCount != nil {
		q = q.Set("retry_count = ?", *u.RetryCount)
	}
	if u.Result != nil {
		q = q.Set("result = ?", u.Result)
	}
	if u.Error != "" {
		q = q.Set("error = ?", u.Error)
	}
	if u.CancelReason != "" {
		q = q.Set("cancel_reason = ?", string(u.CancelReason))
	}
	if u.Status.Terminal() {
		q = q.Set("completed_at = COALESCE(completed_at, NOW())")
	}

	err := q.Scan(ctx)
	if err != nil {
		if !isNoRows(err) {
			return nil, fmt.Errorf("seatwatch/bun: update job status: %w", err)
		}
		// Distinguish a missing record from a terminal one.
		exists, exErr := s.db.NewSelect().
			Model((*jobModel)(nil)).
			Where("id = ?", jobID.String()).
			Exists(ctx)
		if exErr != nil {
			return nil, fmt.Errorf("seatwatch/bun: update job status: %w", exErr)
		}
		if exists {
			return nil, seatwatch.ErrJobTerminal
		}
		return nil, seatwatch.ErrJobNotFound
	}
	return fromJobModel(m)
}

// ListByOwner returns the owner's jobs, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC")

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("seatwatch/bun: list jobs by owner: %w", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, convErr := fromJobModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("seatwatch/bun: list jobs convert: %w", convErr)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// ListStaleWaiting returns waiting jobs whose deadline is before the
// given instant.
func (s *Store) ListStaleWaiting(ctx context.Context, before time.Time) ([]*job.Job, error) {
	var models []jobModel
	err := s.db.NewSelect().Model(&models).
		Where("status = ?", string(job.StatusWaiting)).
		Where("deadline < ?", before).
		Order("deadline ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("seatwatch/bun: list stale waiting jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, convErr := fromJobModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("seatwatch/bun: stale list convert: %w", convErr)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
