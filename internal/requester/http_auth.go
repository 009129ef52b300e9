package requester

import (
	"context"
	"net/http"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/constants"
	"golang.org/x/oauth2"
)

// AuthManager handles request authentication
type AuthManager interface {
	ApplyAuth(req *http.Request) error
}

// NoAuth sends requests unauthenticated. The code exchange uses it.
type NoAuth struct{}

// ApplyAuth does nothing.
func (NoAuth) ApplyAuth(*http.Request) error {
	return nil
}

// TokenSource yields the current session token. *session.Manager implements it.
type TokenSource interface {
	GetToken(ctx context.Context) (string, bool)
}

// SessionAuthManager attaches the session token as a bearer credential.
// The token is looked up for every request.
type SessionAuthManager struct {
	tokens TokenSource
}

// NewSessionAuthManager creates a SessionAuthManager over tokens.
func NewSessionAuthManager(tokens TokenSource) *SessionAuthManager {
	return &SessionAuthManager{tokens: tokens}
}

// ApplyAuth sets the Authorization header or returns ErrNoToken.
func (a *SessionAuthManager) ApplyAuth(req *http.Request) error {
	token, ok := a.tokens.GetToken(req.Context())
	if !ok || token == "" {
		return ErrNoToken
	}
	(&oauth2.Token{AccessToken: token, TokenType: constants.TokenType}).SetAuthHeader(req)
	return nil
}
