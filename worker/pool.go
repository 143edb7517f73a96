package worker

import (
	"context"
	"log/slog"
	"sync"

	"seatwatch/id"
	"seatwatch/queue"
)

// DefaultConcurrency is the number of worker slots.
const DefaultConcurrency = 5

// Source is the queue surface the pool consumes. Deliveries must close
// the channel when the queue shuts down.
type Source interface {
	Deliveries() <-chan queue.Delivery
	Done(ctx context.Context, jobID id.ID, retry bool)
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithConcurrency sets the number of concurrent worker goroutines.
func WithConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPoolLogger sets the pool's logger.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// Pool runs a fixed set of goroutines consuming deliveries from the
// queue and executing them. Per-job attempts stay sequential because
// the queue never has two deliveries of the same job in flight.
type Pool struct {
	source      Source
	executor    *Executor
	concurrency int
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewPool creates a worker pool over the given delivery source.
func NewPool(source Source, executor *Executor, opts ...PoolOption) *Pool {
	p := &Pool{
		source:      source,
		executor:    executor,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Wait blocks until every worker goroutine has exited, which happens
// after the queue closes its delivery channel.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, slot int) {
	defer p.wg.Done()
	logger := p.logger.With(slog.Int("slot", slot))
	for d := range p.source.Deliveries() {
		outcome := p.executor.Execute(ctx, d)
		p.source.Done(ctx, d.Item.JobID, outcome.Retry())
		logger.Debug("attempt settled",
			slog.String("job_id", d.Item.JobID.String()),
			slog.Int("attempt", d.Attempt),
			slog.Bool("retry", outcome.Retry()),
		)
	}
}
