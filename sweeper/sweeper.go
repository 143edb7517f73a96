// Package sweeper retires abandoned job records. A crash between the
// queue giving up on a job and the store recording a terminal status
// leaves the record waiting forever; the periodic sweep finds waiting
// jobs past their deadline with no queue entry and settles them.
package sweeper

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"seatwatch/budget"
	"seatwatch/event"
	"seatwatch/id"
	"seatwatch/job"
	"seatwatch/queue"
)

// DefaultSchedule runs the sweep every ten minutes.
const DefaultSchedule = "@every 10m"

// PhaseQuerier reports whether the queue still tracks a job.
type PhaseQuerier interface {
	Phase(jobID id.ID) (queue.Phase, bool)
}

var noSeatsResult = json.RawMessage(`{"foundSeats":false}`)

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithSchedule overrides the sweep cron expression. Standard 5-field
// cron and descriptors like "@every 10m" are supported.
func WithSchedule(expr string) Option {
	return func(s *Sweeper) { s.schedule = expr }
}

// WithLogger sets the sweeper's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// Sweeper is the maintenance background task.
type Sweeper struct {
	store    job.Store
	phases   PhaseQuerier
	bus      event.Bus
	schedule string
	logger   *slog.Logger
	now      func() time.Time
	cron     *cronlib.Cron
}

// New builds a Sweeper. phases may be nil when no queue runs in this
// process; every stale record is then considered abandoned.
func New(store job.Store, phases PhaseQuerier, bus event.Bus, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		phases:   phases,
		bus:      bus,
		schedule: DefaultSchedule,
		logger:   slog.Default(),
		now:      budget.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the periodic sweep.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cronlib.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		if n := s.Sweep(ctx); n > 0 {
			s.logger.Info("sweep retired stale jobs", slog.Int("count", n))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep retires every waiting job whose deadline passed and which the
// queue no longer tracks. It returns the number of jobs retired.
func (s *Sweeper) Sweep(ctx context.Context) int {
	stale, err := s.store.ListStaleWaiting(ctx, s.now())
	if err != nil {
		s.logger.Error("sweep failed to list stale jobs", slog.String("error", err.Error()))
		return 0
	}

	retired := 0
	for _, j := range stale {
		if s.phases != nil {
			if _, queued := s.phases.Phase(j.ID); queued {
				// Still scheduled; the worker's deadline check settles it.
				continue
			}
		}
		updated, err := s.store.UpdateStatus(ctx, j.ID, job.StatusUpdate{
			Status:       job.StatusCancelled,
			Result:       noSeatsResult,
			CancelReason: job.ReasonNoSeatsFound,
		})
		if err != nil {
			// A racing transition won; nothing to do.
			continue
		}
		if pubErr := s.bus.Publish(ctx, event.StatusEvent{
			JobID:  updated.ID.String(),
			UserID: updated.OwnerID,
			Status: string(updated.Status),
		}); pubErr != nil {
			s.logger.Warn("sweep event publish failed",
				slog.String("job_id", updated.ID.String()),
				slog.String("error", pubErr.Error()),
			)
		}
		retired++
	}
	return retired
}
