package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel carrying status events.
const Channel = "job-status-updates"

// RedisBus is a Bus implementation over Redis pub/sub, for deployments
// where the API process and the worker process are separate. Each
// subscription holds its own dedicated subscriber connection (Redis
// connections in subscribe mode cannot be reused for publishing).
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger
}

// RedisBusOption configures a RedisBus.
type RedisBusOption func(*RedisBus)

// WithRedisBusLogger sets the bus logger.
func WithRedisBusLogger(l *slog.Logger) RedisBusOption {
	return func(b *RedisBus) { b.logger = l }
}

// NewRedisBus creates a bus on the given client. The caller owns the
// client lifecycle.
func NewRedisBus(client *redis.Client, opts ...RedisBusOption) *RedisBus {
	b := &RedisBus{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish implements Bus.
func (b *RedisBus) Publish(ctx context.Context, evt StatusEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("event: marshal: %w", err)
	}
	if err := b.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("event: publish: %w", err)
	}
	return nil
}

// Subscribe implements Bus. The returned subscription owns a dedicated
// Redis connection that is released on Close.
func (b *RedisBus) Subscribe(ctx context.Context) (Subscription, error) {
	ps := b.client.Subscribe(ctx, Channel)

	// Force the SUBSCRIBE round trip so a dead Redis fails here, not
	// silently inside the pump goroutine.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("event: subscribe: %w", err)
	}

	sub := &redisSubscription{
		ps:     ps,
		ch:     make(chan StatusEvent, DefaultBufferSize),
		logger: b.logger,
	}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	ch     chan StatusEvent
	logger *slog.Logger
	once   sync.Once
}

func (s *redisSubscription) C() <-chan StatusEvent { return s.ch }

func (s *redisSubscription) Close() {
	s.once.Do(func() {
		// Closing the PubSub ends the pump's range loop, which then
		// closes the event channel.
		if err := s.ps.Close(); err != nil {
			s.logger.Warn("event subscription close", slog.String("error", err.Error()))
		}
	})
}

// pump forwards wire messages to the event channel, dropping malformed
// payloads and events the buffer has no room for.
func (s *redisSubscription) pump() {
	defer close(s.ch)

	for msg := range s.ps.Channel() {
		var evt StatusEvent
		if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
			s.logger.Warn("event: malformed payload", slog.String("error", err.Error()))
			continue
		}
		select {
		case s.ch <- evt:
		default:
		}
	}
}
