package contract

import (
	"context"
	"reflect"

	"github.com/CreedTech/relate/domain"
	"github.com/CreedTech/relate/domain/event"
)

// EventSink receives outbound events addressed to one connection.
// Implementations must not block: delivery is best effort per member.
type EventSink interface {
	Consume(ctx context.Context, e event.Outbound) error
}

// IRegistry is the group membership and fan-out surface. The in-memory
// implementation never fails, but the interface keeps error returns so
// a shared pub/sub backend can slot in for multi-node fan-out.
type IRegistry interface {
	// Join adds a channel identity to a group. Idempotent.
	Join(group, channelID string, sink EventSink) error
	// Leave removes a channel identity. A no-op if absent, so
	// disconnect paths are safe to run even when connect never
	// completed.
	Leave(group, channelID string)
	// Broadcast delivers the event to every current member of the
	// group, including the sender. Per-member failures are swallowed.
	Broadcast(ctx context.Context, group string, e event.Outbound) error
}

// IConversationStore resolves durable conversation records by name.
type IConversationStore interface {
	// GetOrCreate returns the conversation for name, creating it on
	// first use. The bool reports whether it was created by this call.
	GetOrCreate(name string) (domain.Conversation, bool, error)
}

// IMessageStore is the optional persistence hook for posted messages.
// The broadcast path does not require it.
type IMessageStore interface {
	Create(fromUser, toUser, content, conversation string) (domain.Message, error)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual
// naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
