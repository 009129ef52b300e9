package requester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// RouteExecutor is a function that can execute a route with params
type RouteExecutor func(ctx context.Context, params map[string]interface{}) (*Response, error)

// RouteConfig holds the configuration for a specific backend route.
// Path may contain {name} placeholders filled from params.
type RouteConfig struct {
	Path    string            `json:"path"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
}

// Request represents a fully built HTTP request
type Request struct {
	URL         string
	Method      string
	Headers     map[string]string
	ContentType string
	HttpRequest *http.Request // The actual HTTP request
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
