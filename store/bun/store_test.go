//go:build integration

package bunstore_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"seatwatch"
	"seatwatch/id"
	"seatwatch/job"
	bunstore "seatwatch/store/bun"
)

// setupTestStore connects to the database named by
// SEATWATCH_TEST_POSTGRES_DSN and runs migrations. The test is skipped
// when the variable is unset.
func setupTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	dsn := os.Getenv("SEATWATCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SEATWATCH_TEST_POSTGRES_DSN not set")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })

	s := bunstore.New(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func newJob(owner string) *job.Job {
	return &job.Job{
		ID:          id.NewJobID(),
		OwnerID:     owner,
		DepartureCd: "010",
		ArrivalCd:   "300",
		TargetMonth: "11월",
		TargetDate:  "18",
		TargetTimes: []string{"09:00", "10:30"},
		Deadline:    time.Now().Add(30 * time.Minute),
		Attempts:    10,
		Status:      job.StatusWaiting,
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	j := newJob("alice")

	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, j); !errors.Is(err, seatwatch.ErrJobAlreadyExists) {
		t.Fatalf("duplicate Create error = %v, want ErrJobAlreadyExists", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OwnerID != "alice" || len(got.TargetTimes) != 2 {
		t.Errorf("round trip lost fields: %+v", got)
	}
}

func TestUpdateStatusConditional(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	j := newJob("alice")
	if err := s.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	retries := 2
	got, err := s.UpdateStatus(ctx, j.ID, job.StatusUpdate{
		Status:       job.StatusCancelled,
		RetryCount:   &retries,
		CancelReason: job.ReasonUserCancelled,
	})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got.Status != job.StatusCancelled || got.CompletedAt == nil {
		t.Errorf("got %+v, want cancelled with CompletedAt set", got)
	}

	if _, err := s.UpdateStatus(ctx, j.ID, job.StatusUpdate{Status: job.StatusActive}); !errors.Is(err, seatwatch.ErrJobTerminal) {
		t.Fatalf("terminal update error = %v, want ErrJobTerminal", err)
	}
	if _, err := s.UpdateStatus(ctx, id.NewJobID(), job.StatusUpdate{Status: job.StatusActive}); !errors.Is(err, seatwatch.ErrJobNotFound) {
		t.Fatalf("missing update error = %v, want ErrJobNotFound", err)
	}
}

func TestListStaleWaiting(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stale := newJob("alice")
	stale.Deadline = time.Now().Add(-time.Hour)
	if err := s.Create(ctx, stale); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.ListStaleWaiting(ctx, time.Now())
	if err != nil {
		t.Fatalf("ListStaleWaiting: %v", err)
	}
	found := false
	for _, g := range got {
		if g.ID.String() == stale.ID.String() {
			found = true
		}
	}
	if !found {
		t.Error("expired waiting job missing from stale list")
	}
}
