package middleware

import (
	"context"
	"time"

	"seatwatch/job"
)

// Timeout returns middleware that enforces a per-attempt deadline. When
// the deadline is exceeded the context is cancelled and the handler
// should return context.DeadlineExceeded. A non-positive duration makes
// this a pass-through.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *job.Job, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
