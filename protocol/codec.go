// Package protocol translates between JSON frames and the typed event
// variants of domain/event. One structured JSON object per frame, with
// the "type" field selecting the variant.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/CreedTech/relate/domain/event"
)

// ProtocolError marks a malformed or unrecognized inbound frame:
// invalid JSON, a missing "type", an unsupported "type", or missing
// required fields. It is never a server fault.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

var validate = validator.New()

// envelope carries only the discriminator, so the payload can be
// decoded a second time against the variant's own wire struct.
type envelope struct {
	Type *string `json:"type"`
}

type chatMessageWire struct {
	Type    string  `json:"type"`
	Name    *string `json:"name" validate:"required"`
	Message *string `json:"message" validate:"required"`
}

type welcomeWire struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type chatMessageEchoWire struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// DecodeInbound parses one client frame. Every failure is a
// *ProtocolError; no partial result is ever returned.
func DecodeInbound(data []byte) (event.Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("invalid JSON frame: %v", err)}
	}
	if env.Type == nil {
		return nil, &ProtocolError{Reason: "missing event type"}
	}

	switch *env.Type {
	case event.TypeChatMessage:
		var wire chatMessageWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("invalid chat_message frame: %v", err)}
		}
		if err := validate.Struct(wire); err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("chat_message requires name and message: %v", err)}
		}
		return event.ChatMessage{Name: *wire.Name, Message: *wire.Message}, nil
	default:
		return nil, &ProtocolError{Reason: fmt.Sprintf("unsupported event type %q", *env.Type)}
	}
}

// EncodeOutbound renders a server event as a JSON frame. The switch is
// exhaustive over the outbound variant set.
func EncodeOutbound(e event.Outbound) ([]byte, error) {
	switch evt := e.(type) {
	case event.Welcome:
		return json.Marshal(welcomeWire{Type: event.TypeWelcome, Message: evt.Message})
	case event.ChatMessageEcho:
		return json.Marshal(chatMessageEchoWire{Type: event.TypeChatMessageEcho, Name: evt.Name, Message: evt.Message})
	default:
		return nil, fmt.Errorf("unknown outbound event %T", e)
	}
}
