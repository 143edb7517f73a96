// Package engine wires the subsystems together: submission admission
// (rate limiting, validation, attempt budgeting), the delay queue, the
// worker pool, and the status event bus. It exposes the operations the
// API layer calls: Submit, Get, History, Cancel.
//
// The engine owns the queue and pool lifecycles but not the store, bus,
// or limiter, which the process entry point constructs and injects.
package engine
