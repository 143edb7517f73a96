package budget_test

import (
	"testing"
	"time"

	"seatwatch/budget"
)

func TestAttempts(t *testing.T) {
	now := time.Date(2025, 11, 18, 8, 0, 0, 0, budget.Location)

	tests := []struct {
		name     string
		deadline time.Time
		want     int
	}{
		{"thirty minutes out", now.Add(30 * time.Minute), 10},
		{"ten minutes out", now.Add(10 * time.Minute), 4},
		{"exactly one interval", now.Add(3 * time.Minute), 1},
		{"just over one interval", now.Add(3*time.Minute + time.Second), 2},
		{"already passed", now.Add(-time.Hour), 1},
		{"exactly now", now, 1},
		{"tiny window", now.Add(time.Second), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := budget.Attempts(tt.deadline, now); got != tt.want {
				t.Errorf("Attempts() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDeadline(t *testing.T) {
	now := time.Date(2025, 11, 1, 12, 0, 0, 0, budget.Location)

	deadline, err := budget.Deadline(11, 18, "09:30", now)
	if err != nil {
		t.Fatalf("Deadline: %v", err)
	}

	want := time.Date(2025, 11, 18, 9, 30, 0, 0, budget.Location)
	if !deadline.Equal(want) {
		t.Errorf("Deadline() = %v, want %v", deadline, want)
	}
}

func TestDeadlineBadTime(t *testing.T) {
	now := time.Date(2025, 11, 1, 12, 0, 0, 0, budget.Location)
	if _, err := budget.Deadline(11, 18, "morning", now); err == nil {
		t.Error("expected error for malformed time")
	}
}

func TestExpired(t *testing.T) {
	deadline := time.Date(2025, 11, 18, 9, 0, 0, 0, budget.Location)

	if budget.Expired(deadline, deadline.Add(-time.Minute)) {
		t.Error("deadline one minute away should not be expired")
	}
	if !budget.Expired(deadline, deadline) {
		t.Error("deadline instant itself should count as expired")
	}
	if !budget.Expired(deadline, deadline.Add(time.Minute)) {
		t.Error("deadline one minute ago should be expired")
	}
}

// Target 09:00 today, now 08:50: ceil(10m/3m) = 4 attempts.
func TestAttemptsMatchesSubmissionScenario(t *testing.T) {
	now := time.Date(2025, 11, 18, 8, 50, 0, 0, budget.Location)
	deadline, err := budget.Deadline(11, 18, "09:00", now)
	if err != nil {
		t.Fatalf("Deadline: %v", err)
	}
	if got := budget.Attempts(deadline, now); got != 4 {
		t.Errorf("Attempts() = %d, want 4", got)
	}
}
