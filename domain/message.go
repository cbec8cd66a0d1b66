package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat event persisted for a conversation.
type Message struct {
	ID           uuid.UUID
	FromUser     string
	ToUser       string
	Content      string
	Conversation string
	CreatedAt    time.Time
}
