// Package budget computes the retry-attempt budget for a seat-check job.
//
// All arithmetic is done in Korea Standard Time (UTC+9) regardless of the
// server's locale. The durable store records timestamps in the same zone,
// so "has the departure passed" checks always agree with the record.
package budget

import (
	"fmt"
	"time"
)

// RetryInterval is the fixed delay between seat-check attempts.
const RetryInterval = 3 * time.Minute

// Location is the fixed civil timezone for all deadline arithmetic.
var Location = time.FixedZone("KST", 9*60*60)

// Now returns the current instant in KST.
func Now() time.Time {
	return time.Now().In(Location)
}

// Deadline builds the civil deadline for the given month, day and HH:MM
// departure time in the current year (no year rollover handling). The year
// is taken from now so tests can pin it.
func Deadline(month, day int, lastTime string, now time.Time) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(lastTime, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("budget: parse time %q: %w", lastTime, err)
	}

	return time.Date(now.In(Location).Year(), time.Month(month), day, hour, minute, 0, 0, Location), nil
}

// Attempts returns how many fixed-interval attempts are needed to cover the
// window from now to deadline: max(1, ceil(remaining / RetryInterval)).
//
// A deadline already in the past yields 1. This is deliberate: the single
// immediate attempt is expected to be rejected by the worker's deadline
// check, retiring the job as cancelled with an audit trail instead of
// failing the submission.
func Attempts(deadline, now time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 1
	}

	attempts := int((remaining + RetryInterval - 1) / RetryInterval)
	if attempts < 1 {
		return 1
	}
	return attempts
}

// Expired reports whether the deadline has passed. The worker's per-attempt
// deadline check and the maintenance sweep both go through here so they
// agree with Attempts on boundary instants.
func Expired(deadline, now time.Time) bool {
	return !now.In(Location).Before(deadline)
}
