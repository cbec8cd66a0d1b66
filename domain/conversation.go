// Package domain contains core concepts of the chat delivery layer.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"strings"
	"time"
)

// Conversation is a durable record identified by a unique name.
// It is created lazily on first connection to that name.
type Conversation struct {
	Name      string
	CreatedAt time.Time
}

// Peer returns the other participant of a two-party conversation
// following the "alice__bob" naming convention. It returns an empty
// string when the name does not follow the convention.
func (c Conversation) Peer(username string) string {
	usernames := strings.Split(c.Name, "__")
	if len(usernames) != 2 {
		return ""
	}
	for _, u := range usernames {
		if u != username {
			return u
		}
	}
	return ""
}
