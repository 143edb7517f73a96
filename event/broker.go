package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"seatwatch/id"
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 64

// Broker is an in-process Bus implementation. Events are delivered to
// every live subscriber with a non-blocking send; a subscriber whose
// buffer is full drops the event.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	bufferSize int
	logger     *slog.Logger

	totalPublished atomic.Int64
	totalDropped   atomic.Int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(n int) BrokerOption {
	return func(b *Broker) { b.bufferSize = n }
}

// WithBrokerLogger sets the broker's logger.
func WithBrokerLogger(l *slog.Logger) BrokerOption {
	return func(b *Broker) { b.logger = l }
}

// NewBroker creates an in-memory event broker.
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		subscribers: make(map[string]*subscriber),
		bufferSize:  DefaultBufferSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish implements Bus. It never blocks; subscribers with full buffers
// miss the event.
func (b *Broker) Publish(_ context.Context, evt StatusEvent) error {
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if s.send(evt) {
			b.totalPublished.Add(1)
		} else {
			b.totalDropped.Add(1)
		}
	}
	return nil
}

// Subscribe implements Bus.
func (b *Broker) Subscribe(_ context.Context) (Subscription, error) {
	s := &subscriber{
		id:     id.NewSubscriberID().String(),
		ch:     make(chan StatusEvent, b.bufferSize),
		broker: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closeCh()
		return s, nil
	}
	b.subscribers[s.id] = s
	return s, nil
}

// Close shuts the broker down and closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sid, s := range b.subscribers {
		s.closeCh()
		delete(b.subscribers, sid)
	}
}

// Stats returns publish/drop counters, mainly for tests and debugging.
func (b *Broker) Stats() (published, dropped int64) {
	return b.totalPublished.Load(), b.totalDropped.Load()
}

func (b *Broker) remove(sid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subscribers[sid]; ok {
		delete(b.subscribers, sid)
		s.closeCh()
	}
}

type subscriber struct {
	id     string
	ch     chan StatusEvent
	broker *Broker

	// mu serializes send against closeCh so the channel is never closed
	// mid-send.
	mu     sync.RWMutex
	closed bool
}

func (s *subscriber) C() <-chan StatusEvent { return s.ch }

func (s *subscriber) Close() {
	s.broker.remove(s.id)
}

// send attempts a non-blocking delivery. Returns false when the event was
// dropped (closed subscriber or full buffer).
func (s *subscriber) send(evt StatusEvent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

func (s *subscriber) closeCh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
