package nemo

import (
	"errors"
	"fmt"
)

// Sentinel errors for remote service interactions
var (
	// ErrNoJobID indicates a submission response with no recognizable job id
	ErrNoJobID = errors.New("submission response contained no job id")

	// ErrEmptyDownload indicates a results download with no content
	ErrEmptyDownload = errors.New("results download was empty")

	// ErrServiceUnavailable indicates the health check failed
	ErrServiceUnavailable = errors.New("data designer service unavailable")
)

// APIError carries the HTTP status and response body of a failed call so
// the agent can surface actionable error text to the user.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 500 {
		body = body[:500] + "..."
	}
	return fmt.Sprintf("designer api error (status %d): %s", e.StatusCode, body)
}

// IsRetryable reports whether the error is worth retrying: rate limits
// and server-side failures.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
