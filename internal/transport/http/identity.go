package http

import (
	"errors"
	"net/http"
	"strings"
)

var errUnauthenticated = errors.New("missing or invalid credentials")

// TokenVerifier turns a bearer token into a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Identity resolves the calling user. With a verifier configured it requires
// a bearer token (Authorization header, or the token query parameter for
// browsers opening a websocket). Without one it trusts the userId query
// parameter, which is only meant for local development.
type Identity struct {
	tokens TokenVerifier
}

func NewIdentity(tokens TokenVerifier) *Identity {
	return &Identity{tokens: tokens}
}

func (i *Identity) UserID(r *http.Request) (string, error) {
	if i.tokens == nil {
		if id := strings.TrimSpace(r.URL.Query().Get("userId")); id != "" {
			return id, nil
		}
		return "", errUnauthenticated
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token == r.Header.Get("Authorization") {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return "", errUnauthenticated
	}
	userID, err := i.tokens.Verify(token)
	if err != nil {
		return "", errUnauthenticated
	}
	return userID, nil
}
