package queue

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"seatwatch"
	"seatwatch/budget"
	"seatwatch/id"
)

// Phase reports where an entry sits in its attempt cycle.
type Phase string

const (
	// PhasePending means the entry is waiting for its run time.
	PhasePending Phase = "pending"
	// PhaseRunning means a delivery for the entry is in flight and has
	// not been acknowledged with Done yet.
	PhaseRunning Phase = "running"
)

// DefaultDispatchRate is the global cap on deliveries per second.
const DefaultDispatchRate = 10

// Item is the unit of scheduling. Attempts is the total budget computed
// at submission; the queue never invents extra attempts.
type Item struct {
	JobID    id.ID
	OwnerID  string
	Attempts int
	Priority int
	Delay    time.Duration
}

// Delivery is handed to a worker for one attempt. Final is set on the
// last budgeted attempt so the worker can retire the job instead of
// asking for another retry.
type Delivery struct {
	Item    Item
	Attempt int
	Final   bool
}

type entry struct {
	item    Item
	attempt int
	runAt   time.Time
	phase   Phase
	seq     uint64
	index   int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if !h[i].runAt.Equal(h[j].runAt) {
		return h[i].runAt.Before(h[j].runAt)
	}
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority > h[j].item.Priority
	}
	return h[i].seq < h[j].seq
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Option configures a Queue.
type Option func(*Queue)

// WithDispatchRate caps deliveries per second.
func WithDispatchRate(perSecond float64) Option {
	return func(q *Queue) { q.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// WithRetryInterval overrides the delay between attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(q *Queue) { q.retryInterval = d }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithLogger sets the queue's logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// Queue is an in-process delay queue with a single scheduler goroutine.
type Queue struct {
	mu      sync.Mutex
	entries map[string]*entry
	heap    entryHeap
	seq     uint64
	closed  bool

	deliveries    chan Delivery
	wake          chan struct{}
	stop          chan struct{}
	done          chan struct{}
	limiter       *rate.Limiter
	retryInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// New builds a queue. Call Start before adding items.
func New(opts ...Option) *Queue {
	q := &Queue{
		entries:       make(map[string]*entry),
		deliveries:    make(chan Delivery),
		wake:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		limiter:       rate.NewLimiter(rate.Limit(DefaultDispatchRate), 1),
		retryInterval: budget.RetryInterval,
		now:           budget.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the scheduler. The context bounds the scheduler's
// lifetime together with Close.
func (q *Queue) Start(ctx context.Context) {
	go q.run(ctx)
}

// Deliveries is the channel the worker pool consumes. It closes when
// the scheduler exits.
func (q *Queue) Deliveries() <-chan Delivery {
	return q.deliveries
}

// Add schedules the first attempt of an item after its delay.
func (q *Queue) Add(_ context.Context, item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return seatwatch.ErrStoreClosed
	}
	key := item.JobID.String()
	if _, ok := q.entries[key]; ok {
		return seatwatch.ErrJobAlreadyExists
	}
	if item.Attempts < 1 {
		item.Attempts = 1
	}
	q.seq++
	e := &entry{
		item:    item,
		attempt: 1,
		runAt:   q.now().Add(item.Delay),
		phase:   PhasePending,
		seq:     q.seq,
	}
	q.entries[key] = e
	heap.Push(&q.heap, e)
	q.kick()
	return nil
}

// Remove drops a pending entry. A running entry cannot be removed; the
// caller retries after the in-flight attempt acknowledges.
func (q *Queue) Remove(_ context.Context, jobID id.ID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[jobID.String()]
	if !ok {
		return seatwatch.ErrJobNotFound
	}
	if e.phase == PhaseRunning {
		return seatwatch.ErrJobRunning
	}
	delete(q.entries, jobID.String())
	heap.Remove(&q.heap, e.index)
	q.kick()
	return nil
}

// Done acknowledges a delivery. With retry set and budget remaining the
// entry is rescheduled one interval out; otherwise it is retired.
func (q *Queue) Done(_ context.Context, jobID id.ID, retry bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[jobID.String()]
	if !ok || e.phase != PhaseRunning {
		return
	}
	if retry && e.attempt < e.item.Attempts {
		e.attempt++
		e.runAt = q.now().Add(q.retryInterval)
		e.phase = PhasePending
		heap.Push(&q.heap, e)
		q.kick()
		return
	}
	delete(q.entries, jobID.String())
}

// Phase reports an entry's phase, or false when the job is not queued.
func (q *Queue) Phase(jobID id.ID) (Phase, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[jobID.String()]
	if !ok {
		return "", false
	}
	return e.phase, true
}

// Len counts queued entries, in-flight ones included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close stops the scheduler and closes the delivery channel.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.stop)
	<-q.done
}

func (q *Queue) kick() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	defer close(q.deliveries)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		q.mu.Lock()
		var next *entry
		if len(q.heap) > 0 {
			next = q.heap[0]
		}
		now := q.now()
		if next != nil && !next.runAt.After(now) {
			heap.Pop(&q.heap)
			next.phase = PhaseRunning
			d := Delivery{
				Item:    next.item,
				Attempt: next.attempt,
				Final:   next.attempt >= next.item.Attempts,
			}
			q.mu.Unlock()
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case q.deliveries <- d:
			case <-q.stop:
				return
			case <-ctx.Done():
				return
			}
			continue
		}
		wait := time.Hour
		if next != nil {
			wait = next.runAt.Sub(now)
		}
		q.mu.Unlock()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-q.wake:
		case <-q.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
