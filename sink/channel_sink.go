// Package sink provides per-connection outbound queues.
package sink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/CreedTech/relate/domain/event"
)

// ChannelSink buffers outbound events for one connection. Consume is
// called by the registry's fan-out; the connection's write pump drains
// Events. A slow receiver loses events rather than blocking senders.
type ChannelSink struct {
	Events chan event.Outbound

	log    *slog.Logger
	mu     sync.Mutex
	closed bool
}

func NewChannelSink(log *slog.Logger, bufferSize int) *ChannelSink {
	return &ChannelSink{
		Events: make(chan event.Outbound, bufferSize),
		log:    log,
	}
}

// Consume redirects the event through the owning connection's channel.
// The write pump will take it from now.
func (s *ChannelSink) Consume(ctx context.Context, e event.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	select {
	case s.Events <- e:
		return nil
	default:
		// Backpressure: the member's buffer is full, drop for this
		// member only.
		s.log.Debug("outbound buffer full, event dropped", "event_type", e.EventType())
		return nil
	}
}

// Close stops the queue. Idempotent; Consume calls after Close are
// discarded.
func (s *ChannelSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.Events)
}
