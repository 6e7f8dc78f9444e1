package middleware

import (
	"errors"
	"net/http"
	"strings"
)

// MinTokenLen is the shortest bearer token accepted. Anything shorter is
// rejected before any comparison happens.
const MinTokenLen = 20

var (
	ErrNoAuth   = errors.New("missing or malformed Authorization header")
	ErrBadToken = errors.New("bearer token too short")
)

// BearerToken extracts the bearer token from a request. The header must be
// exactly "Bearer <token>"; the token itself is verified against the peer's
// shared secret by the handler, because the expected secret depends on
// which peer the request body names.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoAuth
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", ErrNoAuth
	}
	if len(token) < MinTokenLen {
		return "", ErrBadToken
	}
	return token, nil
}
