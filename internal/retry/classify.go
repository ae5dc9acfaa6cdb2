package retry

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
)

// User-facing messages
const (
	MessageUnknown     = "An unknown error occurred"
	MessageUnexpected  = "An unexpected error occurred. Please try again."
	MessageNetwork     = "Network error. Please check your connection and try again."
	MessageBadRequest  = "Invalid request. Please check your input."
	MessageAuth        = "Authentication required. Please sign in."
	MessageForbidden   = "Access denied. You don't have permission."
	MessageNotFound    = "Resource not found."
	MessageRateLimited = "Too many requests. Please wait a moment and try again."
	MessageServer      = "Server error. Please try again in a moment."
)

// Classification is the user-facing reading of an error
type Classification struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Classify maps err to a user-facing message and a retryable flag.
// It performs no I/O and always returns the same answer for the same error.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Message: MessageUnknown, Retryable: true}
	}

	status := StatusCode(err)
	msg := errorMessage(err)
	if status == 0 && msg == "" {
		return Classification{Message: MessageUnknown, Retryable: true}
	}

	if isNetworkError(err, msg) {
		return Classification{Message: MessageNetwork, Retryable: true}
	}

	if status != 0 {
		switch status {
		case http.StatusBadRequest:
			return Classification{Message: MessageBadRequest, Retryable: false}
		case http.StatusUnauthorized:
			return Classification{Message: MessageAuth, Retryable: false}
		case http.StatusForbidden:
			return Classification{Message: MessageForbidden, Retryable: false}
		case http.StatusNotFound:
			return Classification{Message: MessageNotFound, Retryable: false}
		case http.StatusTooManyRequests:
			return Classification{Message: MessageRateLimited, Retryable: true}
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return Classification{Message: MessageServer, Retryable: true}
		default:
			if msg == "" {
				msg = fmt.Sprintf("Error %d: %s", status, statusText(err, status))
			}
			return Classification{Message: msg, Retryable: status >= 500}
		}
	}

	if msg != "" {
		return Classification{Message: msg, Retryable: true}
	}
	return Classification{Message: MessageUnexpected, Retryable: true}
}

// IsTerminalStatus reports the statuses the executor never retries.
func IsTerminalStatus(status int) bool {
	return status == http.StatusBadRequest ||
		status == http.StatusUnauthorized ||
		status == http.StatusForbidden
}

func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func statusText(err error, status int) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusText != "" {
		return apiErr.StatusText
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Unknown error"
}

func isNetworkError(err error, msg string) bool {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "fetch") || strings.Contains(lower, "network") {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
