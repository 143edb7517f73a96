package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"seatwatch"
	"seatwatch/ratelimit"
)

func TestMemoryLimiterWindow(t *testing.T) {
	now := time.Date(2025, 11, 18, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	l := ratelimit.NewMemoryLimiter(ratelimit.WithClock(clock))
	ctx := context.Background()
	key := ratelimit.UserKey("alice")

	// First five submissions in the window are admitted.
	for i := range 5 {
		d, err := l.Allow(ctx, key)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("submission %d should be admitted", i+1)
		}
	}

	// The sixth is rejected with a retry-after hint of the window size.
	d, err := l.Allow(ctx, key)
	if err != nil {
		t.Fatalf("Allow #6: %v", err)
	}
	if d.Allowed {
		t.Fatal("sixth submission within the window should be rejected")
	}
	if d.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", d.RetryAfter)
	}

	// Once the window has elapsed since the first submission, a new one
	// is admitted again.
	now = now.Add(61 * time.Second)
	d, err = l.Allow(ctx, key)
	if err != nil {
		t.Fatalf("Allow after window: %v", err)
	}
	if !d.Allowed {
		t.Error("submission after window elapsed should be admitted")
	}
}

func TestMemoryLimiterKeysIndependent(t *testing.T) {
	l := ratelimit.NewMemoryLimiter(ratelimit.WithMemoryMax(1))
	ctx := context.Background()

	if d, _ := l.Allow(ctx, ratelimit.UserKey("alice")); !d.Allowed {
		t.Fatal("alice's first submission should be admitted")
	}
	if d, _ := l.Allow(ctx, ratelimit.UserKey("alice")); d.Allowed {
		t.Fatal("alice's second submission should be rejected")
	}
	if d, _ := l.Allow(ctx, ratelimit.UserKey("bob")); !d.Allowed {
		t.Error("bob's first submission should be admitted despite alice's rejection")
	}
}

func TestKeys(t *testing.T) {
	if got := ratelimit.UserKey("u1"); got != "user:u1" {
		t.Errorf("UserKey = %q", got)
	}
	if got := ratelimit.IPKey("10.0.0.1"); got != "ip:10.0.0.1" {
		t.Errorf("IPKey = %q", got)
	}
	if got := ratelimit.IPKey(""); got != "ip:unknown" {
		t.Errorf("IPKey empty = %q", got)
	}
}

func TestLimitError(t *testing.T) {
	err := &ratelimit.LimitError{RetryAfter: time.Minute}
	if !errors.Is(err, seatwatch.ErrRateLimited) {
		t.Error("LimitError should unwrap to ErrRateLimited")
	}
}
