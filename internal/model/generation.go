package model

// GenerationResult is the canonical outcome of a generation submission:
// either Immediate (media is ready) or Deferred (a job must be tracked).
type GenerationResult interface {
	isGenerationResult()
}

// Media is a finished generated asset
type Media struct {
	URL          string  `json:"url"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
}

// JobHandle identifies a remote job to be tracked
type JobHandle struct {
	JobID    string   `json:"jobId"`
	Provider Provider `json:"provider,omitempty"`
	// Owner names the element following the job, such as a timeline clip.
	// Observing a new job for the same owner replaces the previous one.
	Owner string `json:"-"`
}

// Immediate is a synchronous generation result
type Immediate struct {
	Media Media
}

// Deferred is an asynchronous generation result
type Deferred struct {
	Handle JobHandle
}

func (Immediate) isGenerationResult() {}
func (Deferred) isGenerationResult()  {}

// GenerateClipRequest submits (or regenerates) a single clip
type GenerateClipRequest struct {
	ProjectID string   `json:"projectId" validate:"required"`
	ClipID    string   `json:"clipId"`
	SceneID   string   `json:"sceneId"`
	Prompt    string   `json:"prompt" validate:"required,max=4000"`
	Provider  Provider `json:"provider" validate:"required,oneof=pika runway"`
	Observer  string   `json:"observer" validate:"omitempty,oneof=poll push"`
}

// GenerateScenesRequest submits one clip per scene in parallel
type GenerateScenesRequest struct {
	ProjectID string   `json:"projectId" validate:"required"`
	Scenes    []Scene  `json:"scenes" validate:"required,min=1,max=50,dive"`
	Provider  Provider `json:"provider" validate:"required,oneof=pika runway"`
	Observer  string   `json:"observer" validate:"omitempty,oneof=poll push"`
}

// GenerateVoiceRequest submits a voice-over generation
type GenerateVoiceRequest struct {
	ProjectID string      `json:"projectId" validate:"required"`
	Script    string      `json:"script" validate:"required"`
	VoiceID   string      `json:"voiceId,omitempty"`
	Engine    VoiceEngine `json:"engine,omitempty" validate:"omitempty,oneof=cloud local"`
	Language  string      `json:"language,omitempty"`
	Style     string      `json:"style,omitempty"`
}

// GenerateScriptRequest asks for a script on a topic
type GenerateScriptRequest struct {
	Topic string `json:"topic" validate:"required,max=1000"`
}

// GenerateThumbnailRequest asks for a project thumbnail
type GenerateThumbnailRequest struct {
	ProjectID string `json:"projectId" validate:"required"`
	Prompt    string `json:"prompt" validate:"required,max=2000"`
}

// GenerateResponse is returned for any generate-and-track submission
type GenerateResponse struct {
	ClipID string    `json:"clipId,omitempty"`
	Status JobStatus `json:"status"`
	JobID  string    `json:"jobId,omitempty"`
	Media  *Media    `json:"media,omitempty"`
}

// SceneGenerationResult reports the submission outcome for one scene
type SceneGenerationResult struct {
	SceneID   string    `json:"sceneId"`
	ClipID    string    `json:"clipId,omitempty"`
	Status    JobStatus `json:"status"`
	JobID     string    `json:"jobId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
}

// GenerateScenesResponse aggregates per-scene submissions
type GenerateScenesResponse struct {
	Results []SceneGenerationResult `json:"results"`
}

// ScriptResponse carries a generated script and its parsed scenes
type ScriptResponse struct {
	Script string  `json:"script"`
	Scenes []Scene `json:"scenes"`
}

// StatusRequest is the body sent to the status endpoint
type StatusRequest struct {
	JobID    string   `json:"job_id"`
	Provider Provider `json:"provider"`
}

// StatusResponse is the body returned by the status endpoint
type StatusResponse struct {
	Status   PollStatus `json:"status"`
	Progress *int       `json:"progress,omitempty"`
	VideoURL string     `json:"video_url,omitempty"`
	URL      string     `json:"url,omitempty"`
	Error    string     `json:"error,omitempty"`
	Message  string     `json:"message,omitempty"`
	JobID    string     `json:"job_id,omitempty"`
}

// MediaURL returns whichever media URL field the provider populated.
func (r StatusResponse) MediaURL() string {
	if r.VideoURL != "" {
		return r.VideoURL
	}
	return r.URL
}

// AssembleRequest is the body sent to the assembly endpoint
type AssembleRequest struct {
	ProjectID string         `json:"projectId"`
	Clips     []AssemblyClip `json:"clips"`
}
