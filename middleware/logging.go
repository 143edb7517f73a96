package middleware

import (
	"context"
	"log/slog"
	"time"

	"seatwatch/job"
)

// Logging returns middleware that logs attempt start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		logger.Info("attempt started",
			slog.String("job_id", j.ID.String()),
			slog.String("route", j.Route()),
			slog.Int("retry_count", j.RetryCount),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("attempt failed",
				slog.String("job_id", j.ID.String()),
				slog.String("route", j.Route()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("attempt completed",
				slog.String("job_id", j.ID.String()),
				slog.String("route", j.Route()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
