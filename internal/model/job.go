package model

import (
	"encoding/json"
	"time"
)

// Job represents one remote, asynchronously-completing generation request
type Job struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"projectId,omitempty"`
	Type      GenerationKind  `json:"type,omitempty"`
	Provider  Provider        `json:"provider,omitempty"`
	Status    JobStatus       `json:"status"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Retryable bool            `json:"retryable,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// JobUpdate carries a partial set of fields to merge into a Job.
// Nil fields are left untouched.
type JobUpdate struct {
	Status    *JobStatus
	Progress  *int
	Message   *string
	Result    json.RawMessage
	Retryable *bool
}

// Apply merges the set fields of u into j.
func (u JobUpdate) Apply(j *Job) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.Message != nil {
		j.Message = *u.Message
	}
	if u.Result != nil {
		j.Result = append(json.RawMessage(nil), u.Result...)
	}
	if u.Retryable != nil {
		j.Retryable = *u.Retryable
	}
}

// Clone returns a copy of j that shares no mutable memory with it.
func (j Job) Clone() Job {
	if j.Result != nil {
		j.Result = append(json.RawMessage(nil), j.Result...)
	}
	return j
}

// Helpers for building updates

func StatusPtr(s JobStatus) *JobStatus { return &s }
func IntPtr(i int) *int               { return &i }
func StringPtr(s string) *string      { return &s }
func BoolPtr(b bool) *bool            { return &b }

// JobResponse is returned by the job endpoints
type JobResponse struct {
	Job
	Terminal bool `json:"terminal"`
}

// TrackJobRequest starts observing an existing remote job
type TrackJobRequest struct {
	Provider Provider `json:"provider" validate:"required,oneof=pika runway"`
	Observer string   `json:"observer" validate:"omitempty,oneof=poll push"`
}
