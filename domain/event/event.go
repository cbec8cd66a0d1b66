// Package event defines the closed sets of events exchanged over a
// chat connection, one tagged variant set per direction. Adding a new
// event type means adding a variant here and handling it where the
// compiler points.
package event

// Wire type tags. They appear verbatim in the JSON "type" field.
const (
	TypeChatMessage     = "chat_message"
	TypeWelcome         = "welcome_message"
	TypeChatMessageEcho = "chat_message_echo"
)

// Inbound is a client-to-server event.
type Inbound interface {
	inbound()
}

// ChatMessage is a message posted by a participant for broadcast to
// the conversation's group.
type ChatMessage struct {
	Name    string
	Message string
}

func (ChatMessage) inbound() {}

// Outbound is a server-to-client event.
type Outbound interface {
	EventType() string
}

// Welcome is sent once, immediately after a successful connect.
type Welcome struct {
	Message string
}

func (Welcome) EventType() string { return TypeWelcome }

// ChatMessageEcho is delivered to every member of the conversation's
// group, including the original sender, for each accepted ChatMessage.
type ChatMessageEcho struct {
	Name    string
	Message string
}

func (ChatMessageEcho) EventType() string { return TypeChatMessageEcho }

// Greeting is the fixed welcome text.
const Greeting = "Hey there! You've successfully connected!"
