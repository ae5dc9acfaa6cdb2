package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/clipdeck/api/internal/model"
)

// ErrUnrecognizedResult is returned when a generation response carries
// neither media nor a job identifier.
var ErrUnrecognizedResult = errors.New("generation response has neither media nor job id")

// rawGeneration lists every field name the render backend and its
// providers have used for the same two concepts.
type rawGeneration struct {
	JobID     string  `json:"job_id"`
	TaskID    string  `json:"task_id"`
	JobIDAlt  string  `json:"jobId"`
	Clip      string  `json:"clip"`
	URL       string  `json:"url"`
	VideoURL  string  `json:"video_url"`
	VideoURL2 string  `json:"videoUrl"`
	Thumbnail string  `json:"thumbnail"`
	ThumbURL  string  `json:"thumbnail_url"`
	Duration  float64 `json:"duration"`
	Provider  string  `json:"provider"`
}

// NormalizeGeneration maps a raw generation response onto the canonical
// result. Media wins over a job id when both are present.
func NormalizeGeneration(body []byte, fallback model.Provider) (model.GenerationResult, error) {
	var raw rawGeneration
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}

	if url := firstNonEmpty(raw.Clip, raw.URL, raw.VideoURL, raw.VideoURL2); url != "" {
		return model.Immediate{Media: model.Media{
			URL:          url,
			ThumbnailURL: firstNonEmpty(raw.Thumbnail, raw.ThumbURL),
			Duration:     raw.Duration,
		}}, nil
	}

	if id := firstNonEmpty(raw.JobID, raw.TaskID, raw.JobIDAlt); id != "" {
		provider := fallback
		if raw.Provider != "" {
			provider = model.Provider(raw.Provider)
		}
		return model.Deferred{Handle: model.JobHandle{JobID: id, Provider: provider}}, nil
	}

	return nil, ErrUnrecognizedResult
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
