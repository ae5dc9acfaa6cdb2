package retry

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned by clients when an upstream endpoint answers with a non-2xx status.
type APIError struct {
	StatusCode int
	StatusText string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	text := e.StatusText
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, text)
}

// StatusCode extracts the HTTP status carried by err, or 0 when there is none.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Failure is a failure surfaced to the UI after local retries were exhausted
// or skipped. It carries a user-facing message and whether a retry makes sense.
type Failure struct {
	Err         error
	Attempts    int
	UserMessage string
	Retryable   bool
}

// NewFailure classifies err and wraps it as a Failure.
func NewFailure(err error, attempts int) *Failure {
	c := Classify(err)
	return &Failure{
		Err:         err,
		Attempts:    attempts,
		UserMessage: c.Message,
		Retryable:   c.Retryable,
	}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.UserMessage
	}
	return fmt.Sprintf("%s (after %d attempt(s)): %v", f.UserMessage, f.Attempts, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure returns the Failure wrapped in err, classifying plain errors on the fly.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return NewFailure(err, 1)
}
