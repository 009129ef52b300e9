// Package apiclient calls the schema SQL agent session API on behalf of the
// signed-in user.
//
// Every call reads the session token when it is made. Failures of any kind are
// logged and turned into a neutral value; no method returns an error.
package apiclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/requester"
	"go.uber.org/zap"
)

const (
	sessionsLimit = 50
	messagesLimit = 100
)

var (
	routeListSessions = &requester.RouteConfig{Path: "/api/sessions/user/{email}", Method: http.MethodGet}
	routeListMessages = &requester.RouteConfig{Path: "/api/sessions/messages/{session_id}", Method: http.MethodGet}
	routeCreate       = &requester.RouteConfig{Path: "/api/sessions/create", Method: http.MethodPost}
	routeDelete       = &requester.RouteConfig{Path: "/api/sessions/{session_id}", Method: http.MethodDelete}
)

// Doer sends one request to the backend. *requester.HTTPRequester implements it.
type Doer interface {
	Do(ctx context.Context, route *requester.RouteConfig, params map[string]interface{}) (*requester.Response, error)
}

// Client is the authenticated session API client.
type Client struct {
	doer Doer
}

// NewClient creates a Client. The Doer is expected to attach the session token.
func NewClient(doer *requester.HTTPRequester) *Client {
	return New(doer)
}

// New creates a Client over any Doer.
func New(doer Doer) *Client {
	return &Client{doer: doer}
}

// ListSessions returns the sessions of email, or an empty slice.
func (c *Client) ListSessions(ctx context.Context, email string) []SessionSummary {
	var sessions []SessionSummary
	if !c.call(ctx, "list sessions", routeListSessions, map[string]interface{}{
		"email": email,
		"limit": sessionsLimit,
	}, &sessions) {
		return []SessionSummary{}
	}
	if sessions == nil {
		sessions = []SessionSummary{}
	}
	return sessions
}

// ListMessages returns the transcript of sessionID, or an empty slice.
func (c *Client) ListMessages(ctx context.Context, sessionID string) []Message {
	var messages []Message
	if !c.call(ctx, "list messages", routeListMessages, map[string]interface{}{
		"session_id": sessionID,
		"limit":      messagesLimit,
	}, &messages) {
		return []Message{}
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages
}

// CreateSession creates a named session for email, or returns nil.
func (c *Client) CreateSession(ctx context.Context, email, name string) *SessionSummary {
	var created SessionSummary
	if !c.call(ctx, "create session", routeCreate, map[string]interface{}{
		"body": createSessionRequest{UserEmail: email, SessionName: name},
	}, &created) {
		return nil
	}
	return &created
}

// DeleteSession reports whether the backend confirmed the deletion.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) bool {
	return c.call(ctx, "delete session", routeDelete, map[string]interface{}{
		"session_id": sessionID,
	}, nil)
}

// call performs the request and decodes into out when out is non-nil.
func (c *Client) call(ctx context.Context, op string, route *requester.RouteConfig, params map[string]interface{}, out interface{}) bool {
	resp, err := c.doer.Do(ctx, route, params)
	if err != nil {
		c.logFailure(op, err)
		return false
	}
	if out == nil {
		return true
	}
	if err := resp.DecodeJSON(out); err != nil {
		logger.Warn("Unexpected backend response", zap.String("operation", op), zap.Error(err))
		return false
	}
	return true
}

func (c *Client) logFailure(op string, err error) {
	var httpErr *requester.HTTPError
	switch {
	case errors.Is(err, requester.ErrNoToken):
		logger.Debug("Skipping backend call without a session", zap.String("operation", op))
	case errors.Is(err, requester.ErrNetworkUnavailable):
		logger.Warn("Backend unreachable", zap.String("operation", op), zap.Error(err))
	case errors.As(err, &httpErr):
		logger.Warn("Backend call failed",
			zap.String("operation", op),
			zap.Int("status", httpErr.StatusCode),
		)
	default:
		logger.Error("Backend call failed", zap.String("operation", op), zap.Error(err))
	}
}
