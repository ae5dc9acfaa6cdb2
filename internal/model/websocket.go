package model

import "encoding/json"

// WebSocket message types
const (
	WSMessageTypeProgress  = "progress"
	WSMessageTypeStatus    = "status"
	WSMessageTypeComplete  = "complete"
	WSMessageTypeError     = "error"
	WSMessageTypeConnected = "connected"
	WSMessageTypePing      = "ping"
	WSMessageTypePong      = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// PushEvent is an event pushed by the render backend for one job
type PushEvent struct {
	Type     string          `json:"type"`
	JobID    string          `json:"job_id,omitempty"`
	Progress *int            `json:"progress,omitempty"`
	Status   string          `json:"status,omitempty"`
	Message  string          `json:"message,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// WSProgressMessage represents a progress update sent to UI subscribers
type WSProgressMessage struct {
	Type     string    `json:"type"`
	JobID    string    `json:"jobId"`
	Progress int       `json:"progress"`
	Status   JobStatus `json:"status"`
	Message  string    `json:"message,omitempty"`
}

// WSCompleteMessage represents job completion
type WSCompleteMessage struct {
	Type    string          `json:"type"`
	JobID   string          `json:"jobId"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// WSErrorMessage represents a terminal failure
type WSErrorMessage struct {
	Type  string    `json:"type"`
	JobID string    `json:"jobId"`
	Error WSError   `json:"error"`
	State JobStatus `json:"status"`
}

// WSError represents error details
type WSError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
