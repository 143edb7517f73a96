// Package seatwatch polls an intercity bus reservation site for seat
// availability on behalf of many users, retrying on a fixed cadence until
// seats are found, the owner cancels, or the requested departure time
// passes.
//
// # Architecture
//
// seatwatch is organized around a job lifecycle engine. A submission is
// admitted through a sliding-window rate limiter, its retry budget is
// computed from the departure deadline, and a queue entry is scheduled with
// a fixed-interval backoff bounded by that budget. A small worker pool
// executes attempts: each attempt checks for cooperative cancellation,
// re-evaluates the departure deadline, and then delegates to the external
// seat checker. Every status change is written to the durable job store and
// fanned out over the event bus to connected clients via server-sent
// events.
//
//	submit → ratelimit → budget → queue → worker → store + event bus → stream
//
// Subsystems define their own interfaces (job.Store, event.Bus,
// seatcheck.Checker, notify.Notifier, ratelimit.Limiter); the engine
// package wires concrete implementations together, and the process entry
// point owns all resource handles. There is no module-level state.
//
// All timestamps and deadline arithmetic use Korea Standard Time (UTC+9)
// regardless of server locale; see the budget package.
package seatwatch
