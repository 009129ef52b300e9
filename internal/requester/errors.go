package requester

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned when a route needs a session token and none is stored.
	ErrNoToken = errors.New("no session token available")

	// ErrNetworkUnavailable matches every *NetworkError.
	ErrNetworkUnavailable = errors.New("backend unreachable")
)

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is reports ErrNetworkUnavailable as a match.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetworkUnavailable
}

// HTTPError is a response with a non-2xx status.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}
