// Package stream serves live job status updates over server-sent
// events. Each connection holds one bus subscription, filtered to the
// connected owner's jobs. Delivery is at-most-once: a disconnected
// client silently misses events and is expected to fall back to
// polling the job list.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"seatwatch/event"
)

// DefaultHeartbeatInterval is how often an idle connection receives a
// heartbeat frame so silently-dead connections get detected.
const DefaultHeartbeatInterval = 30 * time.Second

// controlMessage is a synthetic frame, not a job status update.
type controlMessage struct {
	Type string `json:"type"`
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHeartbeatInterval overrides the heartbeat period.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(g *Gateway) { g.heartbeat = d }
}

// WithLogger sets the gateway's logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// Gateway bridges the event bus to SSE clients.
type Gateway struct {
	bus       event.Bus
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewGateway builds a gateway over the given bus.
func NewGateway(bus event.Bus, opts ...Option) *Gateway {
	g := &Gateway{
		bus:       bus,
		heartbeat: DefaultHeartbeatInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Serve streams status updates for ownerID until the context ends or
// the bus shuts down. It returns an error only when the stream could
// not be opened; the caller then terminates the connection and the
// client falls back to polling.
func (g *Gateway) Serve(ctx context.Context, w http.ResponseWriter, ownerID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("stream: response writer does not support flushing")
	}

	sub, err := g.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("stream: subscribe: %w", err)
	}
	defer sub.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeFrame(w, controlMessage{Type: "connected"}); err != nil {
		return nil
	}
	flusher.Flush()

	ticker := time.NewTicker(g.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := writeFrame(w, controlMessage{Type: "heartbeat"}); err != nil {
				return nil
			}
			flusher.Flush()
		case ev, ok := <-sub.C():
			if !ok {
				// Bus shut down; the client reconnects or polls.
				return nil
			}
			if ev.UserID != ownerID {
				continue
			}
			if err := writeFrame(w, ev); err != nil {
				g.logger.Debug("stream write failed, dropping client",
					slog.String("owner_id", ownerID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			flusher.Flush()
		}
	}
}

// writeFrame emits one SSE data frame.
func writeFrame(w http.ResponseWriter, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
