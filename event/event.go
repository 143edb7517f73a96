// Package event provides the status-change event bus. Every job status
// mutation is published as a StatusEvent and fanned out to subscribers
// with at-most-once delivery: publishing never blocks on a slow consumer,
// and a disconnected subscriber silently misses events. Clients that need
// stronger guarantees fall back to polling the job list.
package event

import "context"

// StatusEvent is the wire payload broadcast on every job status change.
// Field names match the JSON the stream gateway sends to clients.
type StatusEvent struct {
	JobID  string `json:"jobId"`
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// Subscription is one subscriber's live feed.
type Subscription interface {
	// C returns the event channel. It is closed when the subscription
	// ends, whether by Close or by the bus shutting down.
	C() <-chan StatusEvent

	// Close ends the subscription. Safe to call multiple times.
	Close()
}

// Bus is the broadcast channel for status events. Publish is fire and
// forget; failures are reported so callers can log them, but they must
// never roll back the status mutation that triggered the publish.
type Bus interface {
	Publish(ctx context.Context, evt StatusEvent) error
	Subscribe(ctx context.Context) (Subscription, error)
}
