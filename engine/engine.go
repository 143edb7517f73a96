package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"seatwatch"
	"seatwatch/budget"
	"seatwatch/event"
	"seatwatch/id"
	"seatwatch/job"
	"seatwatch/middleware"
	"seatwatch/notify"
	"seatwatch/queue"
	"seatwatch/ratelimit"
	"seatwatch/seatcheck"
	"seatwatch/worker"
)

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the default configuration.
func WithConfig(cfg seatwatch.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithNotifier sets the notifier invoked when seats are found.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithBus sets the status event bus.
func WithBus(b event.Bus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithLimiter sets the submission rate limiter.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithMiddleware sets the middleware chain around each attempt.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) { e.mws = mws }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRetryInterval overrides the delay between attempts. Tests only;
// production uses the budget interval the attempt count was derived
// from.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Engine) { e.retryInterval = d }
}

// Engine is the job lifecycle coordinator.
type Engine struct {
	store    job.Store
	checker  seatcheck.Checker
	notifier notify.Notifier
	bus      event.Bus
	limiter  ratelimit.Limiter
	mws      []middleware.Middleware
	cfg      seatwatch.Config
	logger   *slog.Logger
	now      func() time.Time

	retryInterval time.Duration

	queue *queue.Queue
	pool  *worker.Pool
}

// New builds an Engine over the given store and seat checker. Call
// Start before submitting jobs.
func New(store job.Store, checker seatcheck.Checker, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		checker:       checker,
		notifier:      notify.Nop{},
		cfg:           seatwatch.DefaultConfig(),
		logger:        slog.Default(),
		now:           budget.Now,
		retryInterval: budget.RetryInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = event.NewBroker()
	}
	if e.limiter == nil {
		e.limiter = ratelimit.NewMemoryLimiter(
			ratelimit.WithMemoryWindow(e.cfg.RateLimitWindow),
			ratelimit.WithMemoryMax(e.cfg.RateLimitMax),
		)
	}

	e.queue = queue.New(
		queue.WithDispatchRate(e.cfg.DispatchRate),
		queue.WithRetryInterval(e.retryInterval),
		queue.WithClock(e.now),
		queue.WithLogger(e.logger),
	)
	executor := worker.NewExecutor(e.store, e.checker, e.notifier, e.bus,
		worker.WithMiddleware(e.mws...),
		worker.WithClock(e.now),
		worker.WithLogger(e.logger),
	)
	e.pool = worker.NewPool(e.queue, executor,
		worker.WithConcurrency(e.cfg.Concurrency),
		worker.WithPoolLogger(e.logger),
	)
	return e
}

// Bus returns the status event bus, for the stream gateway.
func (e *Engine) Bus() event.Bus { return e.bus }

// Store returns the job store.
func (e *Engine) Store() job.Store { return e.store }

// Queue exposes the delay queue, for the maintenance sweep's phase
// queries.
func (e *Engine) Queue() *queue.Queue { return e.queue }

// Start launches the scheduler and worker pool.
func (e *Engine) Start(ctx context.Context) {
	e.queue.Start(ctx)
	e.pool.Start(ctx)
	e.logger.Info("engine started",
		slog.Int("concurrency", e.cfg.Concurrency),
		slog.Float64("dispatch_rate", e.cfg.DispatchRate),
	)
}

// Stop shuts the queue down and waits for in-flight attempts, bounded
// by the configured shutdown timeout.
func (e *Engine) Stop(ctx context.Context) error {
	e.queue.Close()

	done := make(chan struct{})
	go func() {
		e.pool.Wait()
		close(done)
	}()

	timeout := e.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-done:
		e.logger.Info("engine stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("engine: shutdown timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit admits a new job: rate limit, validation, attempt budget,
// durable create, then enqueue.
func (e *Engine) Submit(ctx context.Context, ownerID string, req job.Request) (*job.Job, error) {
	if ownerID == "" {
		return nil, seatwatch.ErrUnauthorized
	}

	decision, err := e.limiter.Allow(ctx, ratelimit.UserKey(ownerID))
	if err != nil {
		return nil, fmt.Errorf("engine: rate limit check: %w", err)
	}
	if !decision.Allowed {
		return nil, &ratelimit.LimitError{RetryAfter: decision.RetryAfter}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	month, day := req.MonthDay()
	deadline, err := budget.Deadline(month, day, req.LastTime(), now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", seatwatch.ErrValidation, err)
	}
	attempts := budget.Attempts(deadline, now)

	j := &job.Job{
		ID:          id.NewJobID(),
		OwnerID:     ownerID,
		DepartureCd: req.DepartureCd,
		ArrivalCd:   req.ArrivalCd,
		TargetMonth: req.TargetMonth,
		TargetDate:  req.TargetDate,
		TargetTimes: req.TargetTimes,
		Deadline:    deadline,
		Attempts:    attempts,
		Status:      job.StatusWaiting,
	}

	// The store is the source of truth: a job that cannot be recorded
	// is not accepted.
	if err := e.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("engine: persist job: %w", err)
	}

	item := queue.Item{
		JobID:    j.ID,
		OwnerID:  ownerID,
		Attempts: attempts,
		Priority: req.Priority,
		Delay:    time.Duration(req.DelayMs) * time.Millisecond,
	}
	if err := e.queue.Add(ctx, item); err != nil {
		// Roll the record forward to failed rather than leaving a
		// waiting job nothing will ever attempt.
		if _, uErr := e.store.UpdateStatus(ctx, j.ID, job.StatusUpdate{
			Status: job.StatusFailed,
			Error:  "enqueue failed: " + err.Error(),
		}); uErr != nil {
			e.logger.Error("failed to mark unqueued job failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", uErr.Error()),
			)
		}
		return nil, fmt.Errorf("engine: enqueue job: %w", err)
	}

	e.publish(ctx, j)
	e.logger.Info("job submitted",
		slog.String("job_id", j.ID.String()),
		slog.String("owner_id", ownerID),
		slog.String("route", j.Route()),
		slog.Int("attempts", attempts),
		slog.Time("deadline", deadline),
	)
	return j, nil
}

// Get returns a job, restricted to its owner.
func (e *Engine) Get(ctx context.Context, ownerID string, jobID id.ID) (*job.Job, error) {
	if ownerID == "" {
		return nil, seatwatch.ErrUnauthorized
	}
	j, err := e.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.OwnerID != ownerID {
		return nil, seatwatch.ErrNotOwner
	}
	return j, nil
}

// History lists the owner's jobs, newest first.
func (e *Engine) History(ctx context.Context, ownerID string, opts job.ListOpts) ([]*job.Job, error) {
	if ownerID == "" {
		return nil, seatwatch.ErrUnauthorized
	}
	return e.store.ListByOwner(ctx, ownerID, opts)
}

// Cancel marks a job cancelled by its owner. The durable store is
// updated first; queue removal is best-effort and refused while an
// attempt is in flight, in which case the worker's cooperative check
// settles the race.
func (e *Engine) Cancel(ctx context.Context, ownerID string, jobID id.ID) (*job.Job, error) {
	if ownerID == "" {
		return nil, seatwatch.ErrUnauthorized
	}
	j, err := e.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.OwnerID != ownerID {
		return nil, seatwatch.ErrNotOwner
	}

	updated, err := e.store.UpdateStatus(ctx, jobID, job.StatusUpdate{
		Status:       job.StatusCancelled,
		CancelReason: job.ReasonUserCancelled,
	})
	if err != nil {
		// Terminal already: no duplicate event, no CompletedAt rewrite.
		return nil, err
	}
	e.publish(ctx, updated)

	if err := e.queue.Remove(ctx, jobID); err != nil {
		if errors.Is(err, seatwatch.ErrJobRunning) {
			e.logger.Info("cancel raced an in-flight attempt, relying on cooperative check",
				slog.String("job_id", jobID.String()),
			)
		} else if !errors.Is(err, seatwatch.ErrJobNotFound) {
			e.logger.Warn("queue removal failed after cancel",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	e.logger.Info("job cancelled",
		slog.String("job_id", jobID.String()),
		slog.String("owner_id", ownerID),
	)
	return updated, nil
}

func (e *Engine) publish(ctx context.Context, j *job.Job) {
	evt := event.StatusEvent{
		JobID:  j.ID.String(),
		UserID: j.OwnerID,
		Status: string(j.Status),
	}
	if err := e.bus.Publish(ctx, evt); err != nil {
		e.logger.Warn("status event publish failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
