package services

import (
	"context"
	"log/slog"

	"github.com/CreedTech/relate/contract"
	"github.com/CreedTech/relate/domain"
	"github.com/CreedTech/relate/domain/event"
)

type IChatService interface {
	JoinConversation(name, channelID string, sink contract.EventSink) (domain.Conversation, error)
	LeaveConversation(name, channelID string)
	PostMessage(ctx context.Context, principal domain.Principal, conversation domain.Conversation, msg event.ChatMessage) error
}

// ChatService binds the conversation store and the group registry
// behind one surface for sessions. The message store is optional: a
// nil store disables persistence without touching the broadcast path.
type ChatService struct {
	log           *slog.Logger
	registry      contract.IRegistry
	conversations contract.IConversationStore
	messages      contract.IMessageStore
}

func NewChatService(log *slog.Logger, registry contract.IRegistry,
	conversations contract.IConversationStore, messages contract.IMessageStore) *ChatService {
	return &ChatService{
		log:           log,
		registry:      registry,
		conversations: conversations,
		messages:      messages,
	}
}

// JoinConversation resolves-or-creates the conversation and registers
// the channel identity under its group.
func (s *ChatService) JoinConversation(name, channelID string, sink contract.EventSink) (domain.Conversation, error) {
	conversation, created, err := s.conversations.GetOrCreate(name)
	if err != nil {
		return domain.Conversation{}, err
	}
	if created {
		s.log.Info("conversation created", "conversation", name)
	}

	if err := s.registry.Join(name, channelID, sink); err != nil {
		return domain.Conversation{}, err
	}
	return conversation, nil
}

// LeaveConversation removes the channel identity from the group.
// Safe to call whether or not the join ever completed.
func (s *ChatService) LeaveConversation(name, channelID string) {
	s.registry.Leave(name, channelID)
}

// PostMessage broadcasts the echo to every member of the conversation's
// group, persisting the message first when a store is configured. A
// persistence failure is logged and does not hold back the broadcast;
// a registry failure is a hard failure for the caller.
func (s *ChatService) PostMessage(ctx context.Context, principal domain.Principal,
	conversation domain.Conversation, msg event.ChatMessage) error {
	if s.messages != nil {
		receiver := conversation.Peer(principal.Username)
		if _, err := s.messages.Create(principal.Username, receiver, msg.Message, conversation.Name); err != nil {
			s.log.Error("message persistence failed",
				"conversation", conversation.Name,
				"from", principal.Username,
				"error", err)
		}
	}

	echo := event.ChatMessageEcho{Name: msg.Name, Message: msg.Message}
	return s.registry.Broadcast(ctx, conversation.Name, echo)
}
