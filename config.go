package seatwatch

import "time"

// Config holds process-wide configuration. It covers infrastructure tuning
// only; domain constants (the 3-minute retry interval, the KST timezone)
// live in the budget package because jobs persisted with one budget must
// not be re-interpreted under another.
type Config struct {
	// Concurrency is the number of worker slots executing seat-check
	// attempts. Attempts for different jobs interleave freely up to this
	// cap; attempts for the same job are always sequential.
	Concurrency int

	// DispatchRate caps total attempt dispatch across all jobs, in
	// attempts per second, to respect the scraped site's load tolerance.
	DispatchRate float64

	// RateLimitWindow and RateLimitMax configure submission admission
	// control per user (or per IP when unauthenticated).
	RateLimitWindow time.Duration
	RateLimitMax    int

	// HeartbeatInterval is how often the stream gateway emits synthetic
	// heartbeat frames on live connections.
	HeartbeatInterval time.Duration

	// SweepSchedule is the cron expression for the maintenance sweep that
	// retires abandoned waiting jobs. Supports descriptors like
	// "@every 10m".
	SweepSchedule string

	// ShutdownTimeout is the maximum time to wait for in-flight attempts
	// during graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with the production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       5,
		DispatchRate:      10,
		RateLimitWindow:   time.Minute,
		RateLimitMax:      5,
		HeartbeatInterval: 30 * time.Second,
		SweepSchedule:     "@every 10m",
		ShutdownTimeout:   30 * time.Second,
	}
}
