package requester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// HTTPRequestBuilder turns a route and its parameters into an *http.Request.
type HTTPRequestBuilder struct {
	baseURL string
	headers map[string]string
	authMgr AuthManager
}

// NewHTTPRequestBuilder creates a new HTTPRequestBuilder
func NewHTTPRequestBuilder(baseURL string, headers map[string]string, authMgr AuthManager) *HTTPRequestBuilder {
	if authMgr == nil {
		authMgr = NoAuth{}
	}
	return &HTTPRequestBuilder{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		authMgr: authMgr,
	}
}

// BuildRequest builds a request for route. Path placeholders consume their
// params; "body" becomes the JSON body; remaining params of a GET become the query.
func (b *HTTPRequestBuilder) BuildRequest(ctx context.Context, route *RouteConfig, params map[string]interface{}) (*Request, error) {
	if route == nil {
		return nil, fmt.Errorf("route config is nil")
	}
	method := route.Method
	if method == "" {
		method = http.MethodGet
	}

	path, rest := b.expandPath(route.Path, params)
	reqURL := b.baseURL + path
	if method == http.MethodGet {
		reqURL = b.addQueryParams(reqURL, rest)
	}

	body, contentType, err := b.createRequestBody(method, rest)
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	headers := make(map[string]string, len(b.headers)+len(route.Headers))
	for k, v := range b.headers {
		headers[k] = v
	}
	for k, v := range route.Headers {
		headers[k] = v
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if err := b.authMgr.ApplyAuth(httpReq); err != nil {
		return nil, fmt.Errorf("failed to apply authentication: %w", err)
	}

	return &Request{
		URL:         reqURL,
		Method:      method,
		Headers:     headers,
		ContentType: contentType,
		HttpRequest: httpReq,
	}, nil
}

// expandPath replaces {name} placeholders with escaped values and returns the
// params that were not used by the path.
func (b *HTTPRequestBuilder) expandPath(path string, params map[string]interface{}) (string, map[string]interface{}) {
	rest := make(map[string]interface{}, len(params))
	for key, value := range params {
		placeholder := "{" + key + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(fmt.Sprintf("%v", value)))
			continue
		}
		rest[key] = value
	}
	return path, rest
}

func (b *HTTPRequestBuilder) addQueryParams(baseURL string, params map[string]interface{}) string {
	if len(params) == 0 {
		return baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}

	q := u.Query()
	for key, value := range params {
		if key == "body" {
			continue
		}
		q.Set(key, fmt.Sprintf("%v", value))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func (b *HTTPRequestBuilder) createRequestBody(method string, params map[string]interface{}) (io.Reader, string, error) {
	if method == http.MethodGet {
		return nil, "", nil
	}
	body, ok := params["body"]
	if !ok {
		return nil, "", nil
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	return bytes.NewReader(jsonData), "application/json", nil
}
