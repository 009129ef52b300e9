package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/config"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/requester"
	"go.uber.org/zap"
)

// BackendExchanger posts the authorization code to the backend, which holds
// the client secret and issues the session token.
type BackendExchanger struct {
	requester *requester.HTTPRequester
	route     *requester.RouteConfig
}

// NewBackendExchanger creates a BackendExchanger for the configured backend.
// Exchange requests are never authenticated.
func NewBackendExchanger(backend *config.BackendConfig, oauth *config.OAuthConfig) *BackendExchanger {
	return &BackendExchanger{
		requester: requester.New(backend, requester.NoAuth{}),
		route: &requester.RouteConfig{
			Path:   oauth.ExchangePath,
			Method: http.MethodPost,
		},
	}
}

// Exchange implements Exchanger. Transport and status failures are returned
// as requester errors; an unusable body wraps ErrMalformedResponse.
func (e *BackendExchanger) Exchange(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error) {
	resp, err := e.requester.Do(ctx, e.route, map[string]interface{}{"body": req})
	if err != nil {
		return nil, err
	}

	var result ExchangeResult
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, ErrNoAccessToken)
	}

	logger.Debug("Authorization code exchanged",
		zap.String("token_type", result.TokenType),
		zap.Bool("has_user", result.User != nil),
		zap.Bool("has_id_token", result.IDToken != ""),
	)
	return &result, nil
}

// IsMalformed reports whether err came from an unusable exchange response.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
