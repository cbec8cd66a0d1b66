package auth

import (
	"net/http"
	"strings"

	"github.com/CreedTech/relate/domain"
)

// ResolvePrincipal extracts the authenticated identity from a
// connection upgrade request. The browser websocket API cannot set
// headers, so the token travels in the "token" query parameter; a
// standard "Authorization: Bearer" header is accepted as well.
//
// An absent or invalid token yields the anonymous principal, never an
// error: whether to refuse the connection is the caller's policy.
func (m *TokenManager) ResolvePrincipal(r *http.Request) domain.Principal {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		header := r.Header.Get("Authorization")
		tokenStr = strings.TrimPrefix(header, "Bearer ")
	}
	if tokenStr == "" {
		return domain.Principal{}
	}

	claims, err := m.Validate(tokenStr)
	if err != nil {
		return domain.Principal{}
	}
	return domain.Principal{Username: claims.Username}
}
