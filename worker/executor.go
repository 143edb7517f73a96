// Package worker executes seat-check attempts. The Executor runs one
// attempt through the middleware chain and drives the job state
// machine; the Pool fans deliveries from the queue across a fixed
// number of executor goroutines.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"seatwatch"
	"seatwatch/budget"
	"seatwatch/event"
	"seatwatch/job"
	"seatwatch/middleware"
	"seatwatch/notify"
	"seatwatch/queue"
	"seatwatch/seatcheck"
)

// Outcome classifies one attempt for the queue's scheduling decision.
type Outcome int

const (
	// OutcomeSkipped means the attempt did not run, usually because the
	// job was cancelled after being dequeued.
	OutcomeSkipped Outcome = iota
	// OutcomeCompleted means seats were found.
	OutcomeCompleted
	// OutcomeRetry means no seats yet; the queue schedules the next
	// attempt.
	OutcomeRetry
	// OutcomeCancelled means the job was retired without seats, either
	// past its deadline or out of budget.
	OutcomeCancelled
	// OutcomeFailed means the check itself errored.
	OutcomeFailed
)

// Retry reports whether the queue should schedule another attempt.
func (o Outcome) Retry() bool { return o == OutcomeRetry }

// noSeatsResult is the payload persisted when a job retires without
// ever finding seats.
var noSeatsResult = json.RawMessage(`{"foundSeats":false}`)

// Option configures an Executor.
type Option func(*Executor)

// WithMiddleware sets the middleware chain wrapped around each check.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// Executor runs one delivery at a time against the reservation site and
// persists the resulting state transition.
type Executor struct {
	store    job.Store
	checker  seatcheck.Checker
	notifier notify.Notifier
	bus      event.Bus
	mw       middleware.Middleware
	now      func() time.Time
	logger   *slog.Logger
}

// NewExecutor creates an Executor with the given collaborators.
func NewExecutor(store job.Store, checker seatcheck.Checker, notifier notify.Notifier, bus event.Bus, opts ...Option) *Executor {
	e := &Executor{
		store:    store,
		checker:  checker,
		notifier: notifier,
		bus:      bus,
		mw:       middleware.Chain(),
		now:      budget.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one attempt. In order: cooperative cancellation check,
// deadline check, then the seat check itself. Cancellation is
// best-effort; an attempt past the first check runs to completion.
func (e *Executor) Execute(ctx context.Context, d queue.Delivery) Outcome {
	j, err := e.store.Get(ctx, d.Item.JobID)
	if err != nil {
		e.logger.Error("attempt aborted, job record unavailable",
			slog.String("job_id", d.Item.JobID.String()),
			slog.String("error", err.Error()),
		)
		return OutcomeSkipped
	}

	if j.Status.Terminal() {
		e.logger.Info("attempt skipped, job already settled",
			slog.String("job_id", j.ID.String()),
			slog.String("status", string(j.Status)),
		)
		return OutcomeSkipped
	}

	if budget.Expired(j.Deadline, e.now()) {
		e.logger.Info("target time passed, retiring job",
			slog.String("job_id", j.ID.String()),
		)
		e.retire(ctx, j, d.Attempt-1)
		return OutcomeCancelled
	}

	if !e.markActive(ctx, j) {
		return OutcomeSkipped
	}

	result, checkErr := e.runCheck(ctx, j)

	switch {
	case checkErr != nil || !result.Success:
		return e.fail(ctx, j, d.Attempt, result, checkErr)
	case result.FoundSeats:
		return e.complete(ctx, j, d.Attempt, result)
	case d.Final:
		// Budget exhausted without seats. Retire instead of leaving the
		// record waiting forever.
		e.retire(ctx, j, d.Attempt)
		return OutcomeCancelled
	default:
		return e.reschedule(ctx, j, d.Attempt)
	}
}

// markActive persists the waiting → active transition so observers see
// progress. Returns false when a concurrent cancellation won.
func (e *Executor) markActive(ctx context.Context, j *job.Job) bool {
	updated, err := e.store.UpdateStatus(ctx, j.ID, job.StatusUpdate{Status: job.StatusActive})
	if err != nil {
		if errors.Is(err, seatwatch.ErrJobTerminal) {
			e.logger.Info("attempt skipped, job cancelled after dequeue",
				slog.String("job_id", j.ID.String()),
			)
			return false
		}
		e.logger.Error("failed to mark job active",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return false
	}
	*j = *updated
	e.publish(ctx, j)
	return true
}

// runCheck delegates to the seat checker through the middleware chain.
func (e *Executor) runCheck(ctx context.Context, j *job.Job) (*seatcheck.Result, error) {
	var result *seatcheck.Result
	terminal := func(ctx context.Context) error {
		var err error
		result, err = e.checker.Check(ctx, seatcheck.Query{
			DepartureCd: j.DepartureCd,
			ArrivalCd:   j.ArrivalCd,
			TargetMonth: j.TargetMonth,
			TargetDate:  j.TargetDate,
			TargetTimes: j.TargetTimes,
		})
		return err
	}
	err := e.mw(ctx, j, terminal)
	if result == nil {
		result = &seatcheck.Result{Success: false}
		if err != nil {
			result.Error = err.Error()
		}
	}
	return result, err
}

func (e *Executor) complete(ctx context.Context, j *job.Job, attempt int, result *seatcheck.Result) Outcome {
	e.logger.Info("seats found",
		slog.String("job_id", j.ID.String()),
		slog.String("first_found_time", result.FirstFoundTime),
		slog.Int("attempt", attempt),
	)

	// Notification first and best-effort: a notifier failure never
	// reverts the completed transition.
	if err := e.notifier.Notify(ctx, j.OwnerID, result); err != nil {
		e.logger.Error("notification failed, job still completed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		payload = noSeatsResult
	}
	e.transition(ctx, j, job.StatusUpdate{
		Status:     job.StatusCompleted,
		RetryCount: &attempt,
		Result:     payload,
	})
	return OutcomeCompleted
}

func (e *Executor) fail(ctx context.Context, j *job.Job, attempt int, result *seatcheck.Result, checkErr error) Outcome {
	detail := result.Error
	if detail == "" && checkErr != nil {
		detail = checkErr.Error()
	}
	e.logger.Error("attempt failed",
		slog.String("job_id", j.ID.String()),
		slog.Int("attempt", attempt),
		slog.String("error", detail),
	)

	payload, err := json.Marshal(result)
	if err != nil {
		payload = nil
	}
	e.transition(ctx, j, job.StatusUpdate{
		Status:     job.StatusFailed,
		RetryCount: &attempt,
		Result:     payload,
		Error:      detail,
	})
	return OutcomeFailed
}

// reschedule records a "no seats yet" attempt. The job stays waiting;
// the queue owns scheduling the next attempt.
func (e *Executor) reschedule(ctx context.Context, j *job.Job, attempt int) Outcome {
	e.transition(ctx, j, job.StatusUpdate{
		Status:     job.StatusWaiting,
		RetryCount: &attempt,
	})
	return OutcomeRetry
}

// retire settles a job that ran out of time or budget without seats.
func (e *Executor) retire(ctx context.Context, j *job.Job, attempt int) {
	e.transition(ctx, j, job.StatusUpdate{
		Status:       job.StatusCancelled,
		RetryCount:   &attempt,
		Result:       noSeatsResult,
		CancelReason: job.ReasonNoSeatsFound,
	})
}

// transition applies a status update and publishes the change. Store
// failures are logged; an attempt never re-runs because of them.
func (e *Executor) transition(ctx context.Context, j *job.Job, u job.StatusUpdate) {
	updated, err := e.store.UpdateStatus(ctx, j.ID, u)
	if err != nil {
		e.logger.Error("failed to persist status transition",
			slog.String("job_id", j.ID.String()),
			slog.String("status", string(u.Status)),
			slog.String("error", err.Error()),
		)
		return
	}
	*j = *updated
	e.publish(ctx, j)
}

// publish emits the status change. Best-effort: failures are logged and
// never roll back the transition.
func (e *Executor) publish(ctx context.Context, j *job.Job) {
	evt := event.StatusEvent{
		JobID:  j.ID.String(),
		UserID: j.OwnerID,
		Status: string(j.Status),
	}
	if err := e.bus.Publish(ctx, evt); err != nil {
		e.logger.Warn("status event publish failed",
			slog.String("job_id", j.ID.String()),
			slog.String("status", string(j.Status)),
			slog.String("error", err.Error()),
		)
	}
}
