package github

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNoRateLimitData = errors.New("rate limit response carried no core budget")
)

// HTTPError is a non-2xx response from the API.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: status code %d", e.URL, e.StatusCode)
}

// Is lets errors.Is(err, ErrNotFound) match a 404.
func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// TransportError is a failure to get any response at all (network, DNS, timeout).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FetchError is returned when the repository listing cannot be completed.
// StatusCode is 0 when no HTTP response was received.
type FetchError struct {
	Account    string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	code := "N/A"
	if e.StatusCode != 0 {
		code = fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("unable to fetch repository list for %q (HTTP %s): %v", e.Account, code, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// statusCode extracts the HTTP status from err, or 0.
func statusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
