// Package job defines the seat-check job entity, its state machine, the
// submission contract, and the store interface.
//
// # Job Entity
//
// A [Job] is one user's request to watch a bus route for open seats. It
// embeds [seatwatch.Entity] for timestamps, carries the route query, and
// progresses through a state machine:
//
//	waiting → active → completed
//	waiting → active → waiting (no seats yet, retry scheduled)
//	waiting → active → cancelled (deadline passed, or owner cancelled)
//	waiting → active → failed
//	waiting → cancelled (owner cancelled before any attempt)
//
// completed, failed and cancelled are terminal; no transition leaves them.
// RetryCount never decreases.
//
// # Ownership
//
// OwnerID is immutable after creation and is the only principal authorized
// to cancel or query the job. Store implementations enforce transition
// monotonicity; ownership checks live in the engine.
//
// # Timestamps
//
// CreatedAt, UpdatedAt and CompletedAt are KST (see budget.Location) so the
// per-attempt deadline check agrees with the record.
package job
