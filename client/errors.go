package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors.
var (
	ErrInvalidDateFormat          = errors.New("invalid date format, use YYYY-MM-DDTHH:MM:SSZ")
	ErrInvalidDateRange           = errors.New("from date is after to date")
	ErrInvalidScopeType           = errors.New("invalid scope type, must be 'org' or 'group'")
	ErrMissingScopeID             = errors.New("scope id is required")
	ErrUnrecognizedResponseFormat = errors.New("unrecognized response format")
	ErrPaginationTruncated        = errors.New("pagination truncated at max pages")
)

// APIError is a non-2xx response from the upstream API.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
	URL        string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("upstream: %d %s: %s", e.StatusCode, e.URL, e.Message)
}

// FormatError reports a response body that matched no known envelope.
type FormatError struct {
	Body string
	Err  error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %s", ErrUnrecognizedResponseFormat, e.Err, e.Body)
	}
	return fmt.Sprintf("%s: %s", ErrUnrecognizedResponseFormat, e.Body)
}

// Is lets errors.Is match ErrUnrecognizedResponseFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrUnrecognizedResponseFormat
}

// Unwrap returns the underlying decode error, if any.
func (e *FormatError) Unwrap() error { return e.Err }

// IsNotFound returns true if the error is a 404 not found.
func IsNotFound(err error) bool {
	var e *APIError
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRateLimited returns true if the error is a 429 rate limit.
func IsRateLimited(err error) bool {
	var e *APIError
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsRetryable reports whether a caller may safely retry the failed GET:
// rate limits, 5xx responses and transport failures. Validation and format
// errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidDateFormat) || errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidScopeType) || errors.Is(err, ErrMissingScopeID) ||
		errors.Is(err, ErrUnrecognizedResponseFormat) {
		return false
	}
	var e *APIError
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	}
	return true
}

// jsonAPIErrors is the JSON:API error document returned by the upstream.
type jsonAPIErrors struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
	Message string `json:"message"`
}

// parseAPIError attempts to decode a JSON:API error body; falls back to raw text.
func parseAPIError(statusCode int, url string, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Body: string(body), URL: url}
	var doc jsonAPIErrors
	if err := json.Unmarshal(body, &doc); err == nil {
		switch {
		case len(doc.Errors) > 0 && doc.Errors[0].Detail != "":
			apiErr.Message = doc.Errors[0].Detail
		case len(doc.Errors) > 0 && doc.Errors[0].Title != "":
			apiErr.Message = doc.Errors[0].Title
		case doc.Message != "":
			apiErr.Message = doc.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(statusCode)
	}
	return apiErr
}
