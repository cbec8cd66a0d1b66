// Package session implements the per-connection lifecycle: a session
// is created when an upgrade is accepted, joins its conversation's
// group once authorized, relays events in both directions, and tears
// down through a single cleanup path on every disconnect.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/CreedTech/relate/domain"
	"github.com/CreedTech/relate/domain/event"
	"github.com/CreedTech/relate/errors"
	"github.com/CreedTech/relate/protocol"
	"github.com/CreedTech/relate/services"
	"github.com/CreedTech/relate/sink"
)

type State int

const (
	StatePending State = iota
	StateConnected
	StateClosed
)

// Session is ephemeral, one per open connection, never persisted.
type Session struct {
	log              *slog.Logger
	chat             services.IChatService
	principal        domain.Principal
	conversationName string
	channelID        string
	conversation     domain.Conversation
	outbound         *sink.ChannelSink

	mu    sync.Mutex
	state State
}

func New(log *slog.Logger, chat services.IChatService, principal domain.Principal,
	conversationName string, bufferSize int) *Session {
	return &Session{
		log:              log,
		chat:             chat,
		principal:        principal,
		conversationName: conversationName,
		channelID:        uuid.NewString(),
		outbound:         sink.NewChannelSink(log, bufferSize),
		state:            StatePending,
	}
}

// Events exposes the outbound queue for the connection's write pump.
func (s *Session) Events() <-chan event.Outbound {
	return s.outbound.Events
}

func (s *Session) ChannelID() string {
	return s.channelID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect authorizes the session and joins it to its conversation's
// group. An unauthenticated principal is refused before any side
// effect: no group join, no welcome. The group join completes before
// the welcome event is enqueued and before Connect returns, so no
// peer broadcast can slip past this session once connected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePending {
		return errors.ErrSessionClosed
	}
	if !s.principal.Authenticated() {
		return errors.ErrUnauthenticated
	}
	if s.conversationName == "" {
		return errors.ErrConversationName
	}

	conversation, err := s.chat.JoinConversation(s.conversationName, s.channelID, s.outbound)
	if err != nil {
		return err
	}
	s.conversation = conversation
	s.state = StateConnected

	s.log.Info("session connected",
		"username", s.principal.Username,
		"conversation", s.conversationName,
		"channel_id", s.channelID)

	return s.outbound.Consume(ctx, event.Welcome{Message: event.Greeting})
}

// HandleFrame processes one inbound frame. Malformed or unrecognized
// frames come back as *protocol.ProtocolError for the gateway to apply
// its policy; any other error is a hard failure for this session.
func (s *Session) HandleFrame(ctx context.Context, data []byte) error {
	if s.State() != StateConnected {
		return errors.ErrSessionClosed
	}

	evt, err := protocol.DecodeInbound(data)
	if err != nil {
		return err
	}

	switch evt := evt.(type) {
	case event.ChatMessage:
		return s.chat.PostMessage(ctx, s.principal, s.conversation, evt)
	default:
		return &protocol.ProtocolError{Reason: "unhandled inbound event"}
	}
}

// Close is the single cleanup path, idempotent and safe to call from
// any state, including a session that never completed authorization.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	s.state = StateClosed

	// Leave unconditionally: the registry tolerates members that
	// never joined, and a missed leave leaks delivery targets.
	s.chat.LeaveConversation(s.conversationName, s.channelID)
	s.outbound.Close()

	s.log.Info("session closed",
		"username", s.principal.Username,
		"conversation", s.conversationName,
		"channel_id", s.channelID)
}
