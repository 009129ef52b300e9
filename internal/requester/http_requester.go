package requester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/config"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of a failed response is kept in an HTTPError.
const maxErrorBody = 512

// HTTPRequester handles both request building and execution
type HTTPRequester struct {
	client  *http.Client
	builder *HTTPRequestBuilder
}

type HTTPRequesterParams struct {
	fx.In

	BackendConfig *config.BackendConfig
	AuthManager   AuthManager
}

// NewHTTPRequester creates an HTTPRequester for the configured backend.
func NewHTTPRequester(params HTTPRequesterParams) *HTTPRequester {
	return New(params.BackendConfig, params.AuthManager)
}

// New creates an HTTPRequester without dependency injection.
func New(cfg *config.BackendConfig, authMgr AuthManager) *HTTPRequester {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPRequester{
		client:  &http.Client{Timeout: timeout},
		builder: NewHTTPRequestBuilder(cfg.BaseURL, cfg.Headers, authMgr),
	}
}

// SetTimeout sets the timeout for the HTTP client
func (r *HTTPRequester) SetTimeout(timeout time.Duration) {
	r.client.Timeout = timeout
}

// BuildRouteExecutor creates a function that can execute requests for a specific route
func (r *HTTPRequester) BuildRouteExecutor(route *RouteConfig) RouteExecutor {
	return func(ctx context.Context, params map[string]interface{}) (*Response, error) {
		return r.Do(ctx, route, params)
	}
}

// Do builds and sends one request. Transport failures return *NetworkError and
// non-2xx responses return *HTTPError together with the response.
func (r *HTTPRequester) Do(ctx context.Context, route *RouteConfig, params map[string]interface{}) (*Response, error) {
	req, err := r.builder.BuildRequest(ctx, route, params)
	if err != nil {
		return nil, err
	}
	logger.Debug("request route", zap.String("method", req.Method), zap.String("url", req.URL))

	resp, err := r.execute(req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		body := strings.TrimSpace(string(resp.Body))
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return resp, &HTTPError{Method: req.Method, URL: req.URL, StatusCode: resp.StatusCode, Body: body}
	}
	return resp, nil
}

// execute performs the actual HTTP request execution
func (r *HTTPRequester) execute(req *Request) (*Response, error) {
	resp, err := r.client.Do(req.HttpRequest)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &NetworkError{Method: req.Method, URL: req.URL, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("Failed to close response body", zap.Error(closeErr))
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: req.URL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       bodyBytes,
		Headers:    resp.Header,
	}, nil
}
