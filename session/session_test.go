package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CreedTech/relate/contract"
	"github.com/CreedTech/relate/domain"
	"github.com/CreedTech/relate/domain/event"
	"github.com/CreedTech/relate/errors"
	"github.com/CreedTech/relate/protocol"
	"github.com/CreedTech/relate/runtime"
	"github.com/CreedTech/relate/services"
)

// memoryConversations is an in-memory conversation store.
type memoryConversations struct {
	known map[string]domain.Conversation
}

func (m *memoryConversations) GetOrCreate(name string) (domain.Conversation, bool, error) {
	if m.known == nil {
		m.known = make(map[string]domain.Conversation)
	}
	if conversation, ok := m.known[name]; ok {
		return conversation, false, nil
	}
	conversation := domain.Conversation{Name: name, CreatedAt: time.Now().UTC()}
	m.known[name] = conversation
	return conversation, true, nil
}

type harness struct {
	chat     services.IChatService
	registry *runtime.Registry
}

func newHarness() harness {
	registry := runtime.NewRegistry(slog.Default())
	chat := services.NewChatService(slog.Default(), registry, &memoryConversations{}, nil)
	return harness{chat: chat, registry: registry}
}

func (h harness) connect(t *testing.T, username, conversation string) *Session {
	t.Helper()
	s := New(slog.Default(), h.chat, domain.Principal{Username: username}, conversation, 8)
	require.NoError(t, s.Connect(context.Background()))
	return s
}

func TestSession_Unauthenticated_Is_Refused_Without_Side_Effects(t *testing.T) {
	req := require.New(t)
	h := newHarness()
	s := New(slog.Default(), h.chat, domain.Principal{}, "room1", 8)

	err := s.Connect(context.Background())

	req.ErrorIs(err, errors.ErrUnauthenticated)
	req.Equal(StatePending, s.State())

	// No group join happened and no welcome was emitted
	req.Zero(h.registry.ConnectionCount())
	req.Empty(s.Events())
}

func TestSession_Connect_Joins_Then_Welcomes(t *testing.T) {
	req := require.New(t)
	h := newHarness()

	s := h.connect(t, "alice", "room1")
	defer s.Close()

	req.Equal(StateConnected, s.State())

	// The join is observable before the welcome is: a peer broadcast
	// sent right after Connect returns must land behind the welcome.
	req.NoError(h.registry.Broadcast(context.Background(), "room1",
		event.ChatMessageEcho{Name: "bob", Message: "early"}))

	req.Equal(event.Welcome{Message: event.Greeting}, <-s.Events())
	req.Equal(event.ChatMessageEcho{Name: "bob", Message: "early"}, <-s.Events())
}

func TestSession_ChatMessage_Broadcasts_To_The_Whole_Group(t *testing.T) {
	req := require.New(t)
	h := newHarness()

	alice := h.connect(t, "alice", "room1")
	defer alice.Close()
	bob := h.connect(t, "bob", "room1")
	defer bob.Close()
	clara := h.connect(t, "clara", "room2")
	defer clara.Close()

	// Drain the welcomes
	<-alice.Events()
	<-bob.Events()
	<-clara.Events()

	err := alice.HandleFrame(context.Background(), []byte(`{"type":"chat_message","name":"alice","message":"hi"}`))
	req.NoError(err)

	// Both members of room1 receive the echo, sender included
	echo := event.ChatMessageEcho{Name: "alice", Message: "hi"}
	req.Equal(echo, <-alice.Events())
	req.Equal(echo, <-bob.Events())

	// The other conversation receives nothing
	req.Empty(clara.Events())
}

func TestSession_Per_Sender_Ordering(t *testing.T) {
	req := require.New(t)
	h := newHarness()

	alice := h.connect(t, "alice", "room1")
	defer alice.Close()
	bob := h.connect(t, "bob", "room1")
	defer bob.Close()
	<-alice.Events()
	<-bob.Events()

	req.NoError(alice.HandleFrame(context.Background(), []byte(`{"type":"chat_message","name":"alice","message":"E1"}`)))
	req.NoError(alice.HandleFrame(context.Background(), []byte(`{"type":"chat_message","name":"alice","message":"E2"}`)))

	for _, s := range []*Session{alice, bob} {
		req.Equal(event.ChatMessageEcho{Name: "alice", Message: "E1"}, <-s.Events())
		req.Equal(event.ChatMessageEcho{Name: "alice", Message: "E2"}, <-s.Events())
	}
}

func TestSession_Protocol_Errors_Are_Typed_And_Harmless(t *testing.T) {
	req := require.New(t)
	h := newHarness()

	alice := h.connect(t, "alice", "room1")
	defer alice.Close()
	bob := h.connect(t, "bob", "room1")
	defer bob.Close()
	<-alice.Events()
	<-bob.Events()

	for _, frame := range []string{
		`{"no_type":true}`,
		`{"type":"presence_ping"}`,
		`{"type":"chat_message","name":"alice"}`,
	} {
		err := alice.HandleFrame(context.Background(), []byte(frame))
		var protoErr *protocol.ProtocolError
		req.ErrorAs(err, &protoErr)
	}

	// Protocol errors are invisible to other participants
	req.Empty(bob.Events())
	req.Equal(StateConnected, alice.State())
}

func TestSession_Close_From_Pending_Is_Safe(t *testing.T) {
	req := require.New(t)
	h := newHarness()

	member := h.connect(t, "alice", "room1")
	defer member.Close()

	// Given a session whose connect never completed
	pending := New(slog.Default(), h.chat, domain.Principal{}, "room1", 8)
	req.ErrorIs(pending.Connect(context.Background()), errors.ErrUnauthenticated)

	// When it disconnects
	pending.Close()
	pending.Close()

	// Then no group membership was affected
	req.Equal(StateClosed, pending.State())
	req.Equal(1, h.registry.ConnectionCount())
}

func TestSession_Close_Removes_Membership(t *testing.T) {
	req := require.New(t)
	h := newHarness()

	s := h.connect(t, "alice", "room1")
	req.Equal(1, h.registry.ConnectionCount())

	s.Close()

	req.Zero(h.registry.ConnectionCount())
	req.ErrorIs(s.Connect(context.Background()), errors.ErrSessionClosed)
	req.ErrorIs(s.HandleFrame(context.Background(), []byte(`{}`)), errors.ErrSessionClosed)
}

// failingChat simulates an unavailable registry backend.
type failingChat struct{}

func (failingChat) JoinConversation(string, string, contract.EventSink) (domain.Conversation, error) {
	return domain.Conversation{}, errors.ErrRegistryUnavailable
}
func (failingChat) LeaveConversation(string, string) {}
func (failingChat) PostMessage(context.Context, domain.Principal, domain.Conversation, event.ChatMessage) error {
	return errors.ErrRegistryUnavailable
}

func TestSession_Registry_Unavailable_Is_A_Hard_Failure(t *testing.T) {
	req := require.New(t)
	s := New(slog.Default(), failingChat{}, domain.Principal{Username: "alice"}, "room1", 8)

	err := s.Connect(context.Background())

	req.ErrorIs(err, errors.ErrRegistryUnavailable)
	req.NotEqual(StateConnected, s.State())
}
