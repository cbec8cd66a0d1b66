// Package runtime hosts the in-process machinery of the delivery
// layer: group membership, fan-out, and supervised background workers.
package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/CreedTech/relate/contract"
	"github.com/CreedTech/relate/domain/event"
)

// group owns the member set of one conversation. Its mutex serializes
// broadcast delivery, so sequential broadcasts into the same group are
// enqueued to every member in some total order.
type group struct {
	mu      sync.Mutex
	members map[string]contract.EventSink
}

// Registry is the single-node IRegistry backend: a mapping from group
// name to member channel identities. It is constructed once at process
// start and shared by every session.
type Registry struct {
	mu     sync.RWMutex
	log    *slog.Logger
	groups map[string]*group
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:    log,
		groups: make(map[string]*group),
	}
}

// Join registers a channel identity under a group, creating the group
// on the fly if it does not exist yet. Idempotent for an identity that
// is already a member.
func (r *Registry) Join(groupName, channelID string, sink contract.EventSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupName]
	if !ok {
		g = &group{members: make(map[string]contract.EventSink)}
		r.groups[groupName] = g
	}
	g.mu.Lock()
	g.members[channelID] = sink
	g.mu.Unlock()
	return nil
}

// Leave removes a channel identity from a group. It is a no-op for an
// unknown group or member, so disconnect paths can always call it.
// No empty sets are left behind to prevent the group map growing
// forever.
func (r *Registry) Leave(groupName, channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[groupName]
	if !ok {
		return
	}
	g.mu.Lock()
	delete(g.members, channelID)
	empty := len(g.members) == 0
	g.mu.Unlock()
	if empty {
		delete(r.groups, groupName)
	}
}

// Broadcast enqueues the event to every current member of the group,
// including the sender. Delivery is best effort per member: a full or
// failing sink never prevents delivery to the others and never raises
// back to the broadcasting caller. The group's delivery mutex keeps
// the relative order of sequential broadcasts identical for all
// members.
func (r *Registry) Broadcast(ctx context.Context, groupName string, e event.Outbound) error {
	r.mu.RLock()
	g, ok := r.groups[groupName]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for channelID, member := range g.members {
		if err := member.Consume(ctx, e); err != nil {
			r.log.Debug("delivery to member failed",
				"group", groupName,
				"channel_id", channelID,
				"error", err)
		}
	}
	return nil
}

// ConnectionCount reports the number of registered channel identities
// across all groups. Used by health telemetry.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, g := range r.groups {
		count += len(g.members)
	}
	return count
}
