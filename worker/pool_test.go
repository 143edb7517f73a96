package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"seatwatch/budget"
	"seatwatch/event"
	"seatwatch/id"
	"seatwatch/job"
	"seatwatch/queue"
	"seatwatch/seatcheck"
	"seatwatch/store/memory"
	"seatwatch/worker"
)

type fakeSource struct {
	ch chan queue.Delivery

	mu    sync.Mutex
	done  map[string]bool // jobID → retry flag
	count int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		ch:   make(chan queue.Delivery),
		done: make(map[string]bool),
	}
}

func (f *fakeSource) Deliveries() <-chan queue.Delivery { return f.ch }

func (f *fakeSource) Done(_ context.Context, jobID id.ID, retry bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done[jobID.String()] = retry
	f.count++
}

func TestPoolProcessesDeliveries(t *testing.T) {
	store := memory.New()
	broker := event.NewBroker()
	defer broker.Close()
	ctx := context.Background()

	mk := func(departureCd string) *job.Job {
		j := &job.Job{
			ID:          id.NewJobID(),
			OwnerID:     "alice",
			DepartureCd: departureCd,
			ArrivalCd:   "300",
			TargetMonth: "11월",
			TargetDate:  "18",
			TargetTimes: []string{"09:00"},
			Deadline:    budget.Now().Add(time.Hour),
			Attempts:    4,
			Status:      job.StatusWaiting,
		}
		if err := store.Create(ctx, j); err != nil {
			t.Fatalf("Create: %v", err)
		}
		return j
	}
	lucky := mk("777")
	unlucky := mk("010")

	// Seats exist only on the lucky route.
	checker := seatcheck.CheckerFunc(func(_ context.Context, q seatcheck.Query) (*seatcheck.Result, error) {
		res := &seatcheck.Result{Query: q, Success: true}
		if q.DepartureCd == "777" {
			res.FoundSeats = true
			res.FirstFoundTime = "09:00"
		}
		return res, nil
	})
	e := worker.NewExecutor(store, checker, &recordingNotifier{}, broker)

	src := newFakeSource()
	pool := worker.NewPool(src, e, worker.WithConcurrency(2))
	pool.Start(ctx)

	src.ch <- queue.Delivery{Item: queue.Item{JobID: lucky.ID, OwnerID: "alice", Attempts: 4}, Attempt: 1}
	src.ch <- queue.Delivery{Item: queue.Item{JobID: unlucky.ID, OwnerID: "alice", Attempts: 4}, Attempt: 1}
	close(src.ch)
	pool.Wait()

	if src.count != 2 {
		t.Fatalf("acknowledged %d deliveries, want 2", src.count)
	}
	if src.done[lucky.ID.String()] {
		t.Error("completed job acknowledged with retry")
	}
	if !src.done[unlucky.ID.String()] {
		t.Error("no-seats job not acknowledged with retry")
	}

	got, _ := store.Get(ctx, lucky.ID)
	if got.Status != job.StatusCompleted {
		t.Errorf("lucky job status = %q, want completed", got.Status)
	}
	got, _ = store.Get(ctx, unlucky.ID)
	if got.Status != job.StatusWaiting {
		t.Errorf("unlucky job status = %q, want waiting", got.Status)
	}
}

func TestPoolWaitReturnsAfterChannelCloses(t *testing.T) {
	store := memory.New()
	broker := event.NewBroker()
	defer broker.Close()

	e := worker.NewExecutor(store, emptyChecker(), &recordingNotifier{}, broker)
	src := newFakeSource()
	pool := worker.NewPool(src, e)
	pool.Start(context.Background())
	close(src.ch)

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after delivery channel closed")
	}
}
