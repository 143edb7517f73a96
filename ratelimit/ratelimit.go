// Package ratelimit provides sliding-window admission control for job
// submission, keyed per user (or per IP as an unauthenticated fallback).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"seatwatch"
)

// Default admission policy: 5 submissions per 60-second sliding window.
const (
	DefaultWindow = time.Minute
	DefaultMax    = 5
)

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the request was admitted.
	Allowed bool
	// RetryAfter is the suggested wait before retrying, set when the
	// request was rejected. It equals the window size.
	RetryAfter time.Duration
}

// Limiter admits or rejects requests under a sliding-window policy.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow records the request under key if admitted. It returns a
	// rejection Decision (not an error) when the window is full; the
	// error return is reserved for backing-store failures.
	Allow(ctx context.Context, key string) (Decision, error)
}

// UserKey builds the admission key for an authenticated principal.
func UserKey(userID string) string { return "user:" + userID }

// IPKey builds the fallback admission key for an unauthenticated caller.
// Submission always requires authentication, so this path is defensive.
func IPKey(addr string) string {
	if addr == "" {
		addr = "unknown"
	}
	return "ip:" + addr
}

// LimitError is returned by callers that convert a rejection Decision into
// an error. It unwraps to seatwatch.ErrRateLimited.
type LimitError struct {
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", seatwatch.ErrRateLimited, e.RetryAfter)
}

func (e *LimitError) Unwrap() error { return seatwatch.ErrRateLimited }
