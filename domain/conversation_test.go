package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversation_Peer(t *testing.T) {
	// Given a conversation named after its two participants
	conv := Conversation{Name: "alice__bob"}

	// When each participant asks for the other side
	// Then the peer is the username that is not their own
	require.Equal(t, "bob", conv.Peer("alice"))
	require.Equal(t, "alice", conv.Peer("bob"))
}

func TestConversation_Peer_UnknownShape(t *testing.T) {
	// Given a conversation whose name does not follow the two-party shape
	conv := Conversation{Name: "lobby"}

	// When a participant asks for the other side
	// Then no peer can be derived
	require.Empty(t, conv.Peer("alice"))
}

func TestPrincipal_Authenticated(t *testing.T) {
	require.True(t, Principal{Username: "alice"}.Authenticated())
	require.False(t, Principal{}.Authenticated())
}
