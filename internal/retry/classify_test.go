package retry

import (
	"errors"
	"fmt"
	"net/url"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantMessage   string
		wantRetryable bool
	}{
		{"nil", nil, MessageUnknown, true},
		{"empty message", errors.New(""), MessageUnknown, true},
		{"network message", errors.New("failed to fetch"), MessageNetwork, true},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("dial tcp: refused")}, MessageNetwork, true},
		{"400", &APIError{StatusCode: 400}, MessageBadRequest, false},
		{"401", &APIError{StatusCode: 401}, MessageAuth, false},
		{"403", &APIError{StatusCode: 403}, MessageForbidden, false},
		{"404", &APIError{StatusCode: 404}, MessageNotFound, false},
		{"429", &APIError{StatusCode: 429}, MessageRateLimited, true},
		{"500", &APIError{StatusCode: 500}, MessageServer, true},
		{"503", &APIError{StatusCode: 503}, MessageServer, true},
		{"507 raw message", &APIError{StatusCode: 507, Message: "disk full"}, "disk full", true},
		{"409 raw message", &APIError{StatusCode: 409, Message: "conflict"}, "conflict", false},
		{"418 no message", &APIError{StatusCode: 418, StatusText: "teapot"}, "Error 418: teapot", false},
		{"wrapped status", fmt.Errorf("submit: %w", &APIError{StatusCode: 429}), MessageRateLimited, true},
		{"plain message", errors.New("provider exploded"), "provider exploded", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMessage)
			}
			if got.Retryable != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", got.Retryable, tt.wantRetryable)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	err := &APIError{StatusCode: 502}
	first := Classify(err)
	for i := 0; i < 10; i++ {
		if Classify(err) != first {
			t.Fatal("classification changed between calls")
		}
	}
}

func TestAsFailure(t *testing.T) {
	if AsFailure(nil) != nil {
		t.Error("nil error should yield nil failure")
	}

	wrapped := fmt.Errorf("outer: %w", NewFailure(&APIError{StatusCode: 404}, 2))
	f := AsFailure(wrapped)
	if f.Attempts != 2 || f.Retryable {
		t.Errorf("unexpected failure %+v", f)
	}

	plain := AsFailure(errors.New("boom"))
	if !plain.Retryable || plain.UserMessage != "boom" {
		t.Errorf("unexpected failure %+v", plain)
	}
}
