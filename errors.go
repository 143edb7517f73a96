package seatwatch

import "errors"

var (
	// Store errors.
	ErrNoStore          = errors.New("seatwatch: no store configured")
	ErrStoreClosed      = errors.New("seatwatch: store closed")
	ErrJobNotFound      = errors.New("seatwatch: job not found")
	ErrJobAlreadyExists = errors.New("seatwatch: job already exists")

	// State errors.
	ErrJobTerminal = errors.New("seatwatch: job already in a terminal state")
	ErrJobRunning  = errors.New("seatwatch: job attempt in flight")

	// Caller errors, surfaced synchronously on submission/cancel/query.
	ErrUnauthorized = errors.New("seatwatch: authentication required")
	ErrNotOwner     = errors.New("seatwatch: job owned by another user")
	ErrValidation   = errors.New("seatwatch: invalid submission")
	ErrRateLimited  = errors.New("seatwatch: too many requests")

	// ErrNoSeats is the retryable domain condition: the check succeeded but
	// no seats were available for any target time. It drives the queue's
	// backoff and is never surfaced to the user as an error.
	ErrNoSeats = errors.New("seatwatch: no seats available yet")
)
