package providers

import (
	"context"
	"errors"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
)

// ErrMalformedResponse is returned when the exchange succeeds at the HTTP level
// but the body is unusable.
var ErrMalformedResponse = errors.New("malformed exchange response")

// ErrNoAccessToken is the ErrMalformedResponse case of a missing access_token.
var ErrNoAccessToken = errors.New("no access token received")

// ExchangeRequest is the body POSTed to the backend exchange endpoint.
type ExchangeRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// ExchangeResult is the decoded backend exchange response.
type ExchangeResult struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type,omitempty"`
	User        *models.UserProfile `json:"user,omitempty"`
	IDToken     string              `json:"id_token,omitempty"`
}

// Exchanger trades an authorization code for a session token.
type Exchanger interface {
	// Exchange sends exactly one request for req.Code.
	Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error)
}
