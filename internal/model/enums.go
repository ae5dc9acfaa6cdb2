package model

import "strings"

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
)

// IsTerminal reports whether no further transition is expected for the status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut:
		return true
	default:
		return false
	}
}

// ParseJobStatus maps both wire vocabularies (push: queued/running/success/error,
// poll: processing/completed/failed/error/timeout) onto JobStatus.
func ParseJobStatus(raw string) (JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "pending", "created":
		return JobStatusQueued, true
	case "running", "processing", "in_progress", "started":
		return JobStatusRunning, true
	case "success", "succeeded", "completed", "complete", "done":
		return JobStatusSucceeded, true
	case "failed", "error", "canceled", "cancelled":
		return JobStatusFailed, true
	case "timeout", "timed_out":
		return JobStatusTimedOut, true
	default:
		return "", false
	}
}

// Poll statuses as reported by the status endpoint
type PollStatus string

const (
	PollStatusProcessing PollStatus = "processing"
	PollStatusCompleted  PollStatus = "completed"
	PollStatusFailed     PollStatus = "failed"
	PollStatusError      PollStatus = "error"
	PollStatusTimeout    PollStatus = "timeout"
)

// Providers
type Provider string

const (
	ProviderPika   Provider = "pika"
	ProviderRunway Provider = "runway"
)

var ValidProviders = []Provider{ProviderPika, ProviderRunway}

// Generation kinds
type GenerationKind string

const (
	GenerationKindScript    GenerationKind = "script"
	GenerationKindVoice     GenerationKind = "voice"
	GenerationKindClip      GenerationKind = "clip"
	GenerationKindThumbnail GenerationKind = "thumbnail"
	GenerationKindAssembly  GenerationKind = "assembly"
)

// Clip generation states
type GenerationStatus string

const (
	GenerationStatusNone       GenerationStatus = ""
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
	GenerationStatusError      GenerationStatus = "error"
	GenerationStatusTimeout    GenerationStatus = "timeout"
)

// GenerationStatusFor maps a terminal job status onto the clip-level vocabulary.
func GenerationStatusFor(s JobStatus) GenerationStatus {
	switch s {
	case JobStatusSucceeded:
		return GenerationStatusCompleted
	case JobStatusTimedOut:
		return GenerationStatusTimeout
	case JobStatusFailed:
		return GenerationStatusFailed
	default:
		return GenerationStatusProcessing
	}
}

// Voice engines
type VoiceEngine string

const (
	VoiceEngineCloud VoiceEngine = "cloud"
	VoiceEngineLocal VoiceEngine = "local"
)
