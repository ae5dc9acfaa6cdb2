package model

// Clip is a unit of generated video media placed on a timeline
type Clip struct {
	ID               string           `json:"id"`
	OrderIndex       int              `json:"orderIndex"`
	SourceDuration   float64          `json:"sourceDuration"`
	TrimStart        float64          `json:"trimStart"`
	TrimEnd          float64          `json:"trimEnd"`
	Path             string           `json:"path,omitempty"`
	URL              string           `json:"url,omitempty"`
	ThumbnailURL     string           `json:"thumbnailUrl,omitempty"`
	SceneID          string           `json:"sceneId,omitempty"`
	Provider         Provider         `json:"provider,omitempty"`
	Prompt           string           `json:"prompt,omitempty"`
	JobID            string           `json:"jobId,omitempty"`
	GenerationStatus GenerationStatus `json:"generationStatus,omitempty"`
}

// Length is the trimmed playback length of the clip in seconds.
func (c Clip) Length() float64 {
	return c.TrimEnd - c.TrimStart
}

// ClipPatch carries media or generation changes for an existing clip.
// Identity and ordering are never touched by a patch.
type ClipPatch struct {
	Path             *string
	URL              *string
	ThumbnailURL     *string
	SourceDuration   *float64
	Provider         *Provider
	Prompt           *string
	JobID            *string
	GenerationStatus *GenerationStatus

	// IfJobID applies the patch only while the clip is still bound to this job
	IfJobID *string
}

// AssemblyClip describes one trimmed clip for the assembly endpoint
type AssemblyClip struct {
	Path  string  `json:"path"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// InsertClipRequest adds a clip at the end of a timeline
type InsertClipRequest struct {
	ID             string   `json:"id"`
	SourceDuration float64  `json:"sourceDuration" validate:"required,gt=0"`
	TrimStart      *float64 `json:"trimStart" validate:"omitempty,gte=0"`
	TrimEnd        *float64 `json:"trimEnd" validate:"omitempty,gt=0"`
	Path           string   `json:"path"`
	URL            string   `json:"url"`
	ThumbnailURL   string   `json:"thumbnailUrl"`
	SceneID        string   `json:"sceneId"`
	Provider       Provider `json:"provider" validate:"omitempty,oneof=pika runway"`
	Prompt         string   `json:"prompt"`
}

// MoveClipRequest moves a clip to a new position
type MoveClipRequest struct {
	NewIndex *int `json:"newIndex" validate:"required"`
}

// TrimClipRequest sets the trim bounds of a clip
type TrimClipRequest struct {
	Start *float64 `json:"start" validate:"required"`
	End   *float64 `json:"end" validate:"required"`
}

// SelectClipRequest sets (or clears, when empty) the focused clip
type SelectClipRequest struct {
	ClipID string `json:"clipId"`
}

// SetTimelineRequest replaces a whole timeline
type SetTimelineRequest struct {
	Clips []Clip `json:"clips" validate:"dive"`
}

// TimelineResponse is the read model of a project timeline
type TimelineResponse struct {
	ProjectID      string  `json:"projectId"`
	Clips          []Clip  `json:"clips"`
	SelectedClipID string  `json:"selectedClipId,omitempty"`
	ScrubTime      float64 `json:"scrubTime"`
	TotalDuration  float64 `json:"totalDuration"`
}

// MutationResponse reports whether a timeline mutation was applied
type MutationResponse struct {
	Applied  bool             `json:"applied"`
	Timeline TimelineResponse `json:"timeline"`
}

// AssembleResponse is returned by the assembly endpoint
type AssembleResponse struct {
	VideoURL  string `json:"videoUrl"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// ScrubRequest moves the playhead
type ScrubRequest struct {
	Time *float64 `json:"time" validate:"required"`
}

// ScrubResponse reports the clamped playhead position
type ScrubResponse struct {
	ScrubTime float64 `json:"scrubTime"`
}
