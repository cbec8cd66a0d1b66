package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/CreedTech/relate/domain/event"
)

// recordingSink collects everything delivered to one member.
type recordingSink struct {
	mu     sync.Mutex
	events []event.Outbound
}

func (s *recordingSink) Consume(_ context.Context, e event.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []event.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Outbound(nil), s.events...)
}

func TestRegistry_Broadcast_Includes_Sender(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	group := "room1"

	// Given three members of the same group
	sinks := []*recordingSink{{}, {}, {}}
	for _, s := range sinks {
		req.NoError(registry.Join(group, uuid.NewString(), s))
	}
	req.Equal(3, registry.ConnectionCount())

	// When one of them broadcasts
	req.NoError(registry.Broadcast(context.Background(), group, event.ChatMessageEcho{Name: "alice", Message: "hi"}))

	// Then every member receives exactly one delivery, sender included
	for _, s := range sinks {
		req.Len(s.Events(), 1)
		req.Equal(event.ChatMessageEcho{Name: "alice", Message: "hi"}, s.Events()[0])
	}
}

func TestRegistry_Broadcast_Does_Not_Cross_Groups(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	member := &recordingSink{}
	bystander := &recordingSink{}
	req.NoError(registry.Join("room1", uuid.NewString(), member))
	req.NoError(registry.Join("room2", uuid.NewString(), bystander))

	req.NoError(registry.Broadcast(context.Background(), "room1", event.ChatMessageEcho{Name: "alice", Message: "hi"}))

	req.Len(member.Events(), 1)
	req.Empty(bystander.Events())
}

func TestRegistry_Broadcast_Preserves_Sender_Order(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	group := "room1"
	receiver := &recordingSink{}
	req.NoError(registry.Join(group, uuid.NewString(), receiver))

	// When a single sender broadcasts E1 then E2
	req.NoError(registry.Broadcast(context.Background(), group, event.ChatMessageEcho{Message: "E1"}))
	req.NoError(registry.Broadcast(context.Background(), group, event.ChatMessageEcho{Message: "E2"}))

	// Then the receiver observes them in send order
	events := receiver.Events()
	req.Len(events, 2)
	req.Equal(event.ChatMessageEcho{Message: "E1"}, events[0])
	req.Equal(event.ChatMessageEcho{Message: "E2"}, events[1])
}

func TestRegistry_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	channelID := uuid.NewString()
	s := &recordingSink{}

	req.NoError(registry.Join("room1", channelID, s))
	req.NoError(registry.Join("room1", channelID, s))

	req.Equal(1, registry.ConnectionCount())

	req.NoError(registry.Broadcast(context.Background(), "room1", event.ChatMessageEcho{Message: "once"}))
	req.Len(s.Events(), 1)
}

func TestRegistry_Leave_Unknown_Member_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	// Leaving before any join must be safe: disconnect paths run
	// unconditionally, even when connect never completed
	registry.Leave("room1", uuid.NewString())
	req.Zero(registry.ConnectionCount())

	member := &recordingSink{}
	req.NoError(registry.Join("room1", uuid.NewString(), member))
	registry.Leave("room1", uuid.NewString())
	req.Equal(1, registry.ConnectionCount())
}

func TestRegistry_Leave_Removes_Empty_Groups(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	channelID := uuid.NewString()

	req.NoError(registry.Join("room1", channelID, &recordingSink{}))
	registry.Leave("room1", channelID)

	req.Zero(registry.ConnectionCount())
	req.Empty(registry.groups)
}

// failingSink simulates a member whose delivery always fails.
type failingSink struct{}

func (failingSink) Consume(context.Context, event.Outbound) error {
	return context.DeadlineExceeded
}

func TestRegistry_Member_Failure_Does_Not_Stop_Fanout(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	group := "room1"

	healthy := &recordingSink{}
	req.NoError(registry.Join(group, "broken", failingSink{}))
	req.NoError(registry.Join(group, "healthy", healthy))

	// A failure to deliver to one member must not raise back
	req.NoError(registry.Broadcast(context.Background(), group, event.ChatMessageEcho{Message: "hi"}))
	req.Len(healthy.Events(), 1)
}
