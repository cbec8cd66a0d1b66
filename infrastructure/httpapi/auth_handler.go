// Package httpapi exposes the account endpoints the chat frontend
// logs in against before opening its websocket.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/CreedTech/relate/errors"
	"github.com/CreedTech/relate/services"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type AuthHandler struct {
	log  *slog.Logger
	auth services.IAuthService
}

func NewAuthHandler(log *slog.Logger, auth services.IAuthService) *AuthHandler {
	return &AuthHandler{log: log, auth: auth}
}

// Login handles POST /auth-token/, the endpoint the frontend calls to
// obtain the token it passes on the websocket URL.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.decode(w, r)
	if !ok {
		return
	}

	token, err := h.auth.Login(creds.Username, creds.Password)
	if err != nil {
		h.reply(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}

	h.reply(w, http.StatusOK, tokenResponse{Username: creds.Username, Token: string(token)})
}

// Register handles POST /register/.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.decode(w, r)
	if !ok {
		return
	}

	token, err := h.auth.Register(creds.Username, creds.Password)
	switch {
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		h.reply(w, http.StatusConflict, errorResponse{Error: "username already taken"})
		return
	case stderrors.Is(err, errors.ErrInvalidPassword):
		h.reply(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case err != nil:
		h.log.Error("registration failed", "error", err)
		h.reply(w, http.StatusInternalServerError, errorResponse{Error: "registration failed"})
		return
	}

	h.reply(w, http.StatusCreated, tokenResponse{Username: creds.Username, Token: string(token)})
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.reply(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return credentials{}, false
	}
	return creds, true
}

func (h *AuthHandler) reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("response encoding failed", "error", err)
	}
}
