// Package ws bridges websocket upgrades to chat sessions. It is the
// transport-specific edge of the delivery layer: everything below it
// speaks sessions and events, not connections.
package ws

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/CreedTech/relate/auth"
	"github.com/CreedTech/relate/protocol"
	"github.com/CreedTech/relate/services"
	"github.com/CreedTech/relate/session"
)

// ChatHandler upgrades `GET /{conversation}/` requests and keeps the
// resulting session alive until disconnect.
//
// Protocol-error policy: an invalid inbound frame is dropped and the
// connection stays open. Only infrastructure failures close it.
type ChatHandler struct {
	log          *slog.Logger
	chat         services.IChatService
	tokens       *auth.TokenManager
	upgrader     websocket.Upgrader
	bufferSize   int
	writeTimeout time.Duration
}

func NewChatHandler(log *slog.Logger, chat services.IChatService, tokens *auth.TokenManager,
	bufferSize int, writeTimeout time.Duration) *ChatHandler {
	return &ChatHandler{
		log:    log,
		chat:   chat,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // cross-origin browser clients carry their token instead
			},
		},
		bufferSize:   bufferSize,
		writeTimeout: writeTimeout,
	}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conversationName := r.PathValue("conversation")

	// Fail closed, fail quiet: an unauthenticated attempt is refused
	// before the upgrade, with no error payload. The websocket never
	// opens.
	principal := h.tokens.ResolvePrincipal(r)
	if !principal.Authenticated() {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.log.Debug("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := session.New(h.log, h.chat, principal, conversationName, h.bufferSize)
	defer sess.Close()

	if err := sess.Connect(r.Context()); err != nil {
		// Infrastructure failure: abrupt disconnect for this session
		// only.
		h.log.Error("session connect failed",
			"conversation", conversationName,
			"error", err)
		return
	}

	go h.writePump(conn, sess)
	h.readLoop(r, conn, sess)
}

// readLoop feeds inbound frames to the session until the transport
// closes or the session hits a hard failure.
func (h *ChatHandler) readLoop(r *http.Request, conn *websocket.Conn, sess *session.Session) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("connection dropped", "channel_id", sess.ChannelID(), "error", err)
			}
			return
		}

		if err := sess.HandleFrame(r.Context(), data); err != nil {
			var protoErr *protocol.ProtocolError
			if stderrors.As(err, &protoErr) {
				// Drop the single event, keep the session open.
				// Invisible to other participants.
				h.log.Warn("invalid frame dropped",
					"channel_id", sess.ChannelID(),
					"reason", protoErr.Reason)
				continue
			}
			h.log.Error("session failure, disconnecting",
				"channel_id", sess.ChannelID(),
				"error", err)
			return
		}
	}
}

// writePump drains the session's outbound queue onto the wire. It
// exits when the session closes its queue or a write fails; a failed
// write also closes the connection so the read loop unblocks.
func (h *ChatHandler) writePump(conn *websocket.Conn, sess *session.Session) {
	for evt := range sess.Events() {
		data, err := protocol.EncodeOutbound(evt)
		if err != nil {
			h.log.Error("outbound encoding failed", "event_type", evt.EventType(), "error", err)
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("write failed", "channel_id", sess.ChannelID(), "error", err)
			conn.Close()
			return
		}
	}
}
