package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipdeck/api/internal/config"
	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/metrics"
	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/retry"
)

// Render backend endpoints
const (
	PathGenerateClip      = "/api/generate/video"
	PathGenerateVoice     = "/api/generate/voice"
	PathGenerateScript    = "/api/generate/script"
	PathGenerateThumbnail = "/api/thumbnail"
	PathStatus            = "/video/status"
	PathAssemble          = "/api/generate/assemble"
)

// Generator defines the render backend operations used by the services
type Generator interface {
	GenerateClip(ctx context.Context, req *model.GenerateClipRequest) (model.GenerationResult, error)
	GenerateVoice(ctx context.Context, req *model.GenerateVoiceRequest) (*VoiceResult, error)
	GenerateScript(ctx context.Context, topic string) (string, error)
	GenerateThumbnail(ctx context.Context, req *model.GenerateThumbnailRequest) (*ThumbnailResult, error)
	CheckStatus(ctx context.Context, jobID string, provider model.Provider) (*model.StatusResponse, error)
	Assemble(ctx context.Context, projectID string, clips []model.AssemblyClip) (*model.AssembleResponse, error)
}

// RenderClient implements Generator against the render backend
type RenderClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retry      retry.Options
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// VoiceResult represents a generated voice-over
type VoiceResult struct {
	AudioURL string  `json:"audioUrl"`
	Duration float64 `json:"duration,omitempty"`
	JobID    string  `json:"jobId,omitempty"`
}

// ThumbnailResult represents a generated thumbnail
type ThumbnailResult struct {
	URL string `json:"url"`
}

type clipRequest struct {
	ProjectID string         `json:"projectId"`
	SceneID   string         `json:"sceneId,omitempty"`
	Prompt    string         `json:"prompt"`
	Provider  model.Provider `json:"provider"`
}

type scriptRequest struct {
	Topic string `json:"topic"`
}

type scriptResponse struct {
	Script string `json:"script"`
}

type voiceResponse struct {
	AudioURL  string  `json:"audioUrl"`
	AudioURL2 string  `json:"audio_url"`
	URL       string  `json:"url"`
	Duration  float64 `json:"duration"`
	JobID     string  `json:"job_id"`
}

type thumbnailResponse struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	ImageURL     string `json:"image_url"`
}

type assembleResponse struct {
	VideoURL  string `json:"videoUrl"`
	VideoURL2 string `json:"video_url"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

// RenderOption configures a RenderClient
type RenderOption func(*RenderClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) RenderOption {
	return func(c *RenderClient) { c.httpClient = hc }
}

// WithRetryOptions overrides the retry policy, including its sleep function
func WithRetryOptions(o retry.Options) RenderOption {
	return func(c *RenderClient) { c.retry = o }
}

func WithRenderLogger(l *slog.Logger) RenderOption {
	return func(c *RenderClient) { c.logger = l }
}

func WithRenderMetrics(m *metrics.Metrics) RenderOption {
	return func(c *RenderClient) { c.metrics = m }
}

// NewRenderClient creates a new render backend client
func NewRenderClient(cfg *config.RenderConfig, retryCfg *config.RetryConfig, opts ...RenderOption) *RenderClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &RenderClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		retry: retry.Options{
			MaxAttempts:       retryCfg.MaxAttempts,
			InitialDelay:      retryCfg.InitialDelay,
			MaxDelay:          retryCfg.MaxDelay,
			BackoffMultiplier: retryCfg.BackoffMultiplier,
		},
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "render_client")
	return c
}

// GenerateClip submits a clip generation and normalizes the answer into an
// Immediate or Deferred result.
func (c *RenderClient) GenerateClip(ctx context.Context, req *model.GenerateClipRequest) (model.GenerationResult, error) {
	body := clipRequest{
		ProjectID: req.ProjectID,
		SceneID:   req.SceneID,
		Prompt:    req.Prompt,
		Provider:  req.Provider,
	}
	raw, err := c.call(ctx, "generate_clip", PathGenerateClip, body)
	if err != nil {
		return nil, err
	}
	result, err := NormalizeGeneration(raw, req.Provider)
	if err != nil {
		return nil, retry.NewFailure(err, 1)
	}
	return result, nil
}

// GenerateVoice submits a voice-over generation
func (c *RenderClient) GenerateVoice(ctx context.Context, req *model.GenerateVoiceRequest) (*VoiceResult, error) {
	raw, err := c.call(ctx, "generate_voice", PathGenerateVoice, req)
	if err != nil {
		return nil, err
	}
	var resp voiceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal voice response: %w", err)
	}
	return &VoiceResult{
		AudioURL: firstNonEmpty(resp.AudioURL, resp.AudioURL2, resp.URL),
		Duration: resp.Duration,
		JobID:    resp.JobID,
	}, nil
}

// GenerateScript asks the backend for a script about topic
func (c *RenderClient) GenerateScript(ctx context.Context, topic string) (string, error) {
	raw, err := c.call(ctx, "generate_script", PathGenerateScript, scriptRequest{Topic: topic})
	if err != nil {
		return "", err
	}
	var resp scriptResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal script response: %w", err)
	}
	return resp.Script, nil
}

// GenerateThumbnail asks the backend for a project thumbnail
func (c *RenderClient) GenerateThumbnail(ctx context.Context, req *model.GenerateThumbnailRequest) (*ThumbnailResult, error) {
	raw, err := c.call(ctx, "generate_thumbnail", PathGenerateThumbnail, req)
	if err != nil {
		return nil, err
	}
	var resp thumbnailResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thumbnail response: %w", err)
	}
	return &ThumbnailResult{URL: firstNonEmpty(resp.URL, resp.ThumbnailURL, resp.ImageURL)}, nil
}

// CheckStatus asks the status endpoint about a remote job. It is a single
// request: the tracker owns the polling cadence and its own error budget.
func (c *RenderClient) CheckStatus(ctx context.Context, jobID string, provider model.Provider) (*model.StatusResponse, error) {
	raw, err := c.send(ctx, http.MethodPost, PathStatus, model.StatusRequest{JobID: jobID, Provider: provider})
	if err != nil {
		return nil, err
	}
	var resp model.StatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status response: %w", err)
	}
	return &resp, nil
}

// Assemble submits the ordered trimmed clips for concatenation
func (c *RenderClient) Assemble(ctx context.Context, projectID string, clips []model.AssemblyClip) (*model.AssembleResponse, error) {
	raw, err := c.call(ctx, "assemble", PathAssemble, model.AssembleRequest{ProjectID: projectID, Clips: clips})
	if err != nil {
		return nil, err
	}
	var resp assembleResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assemble response: %w", err)
	}
	return &model.AssembleResponse{
		VideoURL:  firstNonEmpty(resp.VideoURL, resp.VideoURL2, resp.URL),
		Thumbnail: resp.Thumbnail,
	}, nil
}

// IsConfigured returns true if the client has a backend to talk to
func (c *RenderClient) IsConfigured() bool {
	return c.baseURL != ""
}

// call POSTs body through the retry executor. Exhausted or terminal
// failures come back as *retry.Failure.
func (c *RenderClient) call(ctx context.Context, operation, endpoint string, body interface{}) ([]byte, error) {
	opts := c.retry
	onRetry := opts.OnRetry
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.metrics.RecordRetry(operation)
		c.logger.Warn("retrying render request",
			"operation", operation,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	return retry.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return c.send(ctx, http.MethodPost, endpoint, body)
	}, opts)
}

// send performs one request and returns the raw response body
func (c *RenderClient) send(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.doRequest(req)
}

// doRequest executes an HTTP request and maps non-2xx answers to *retry.APIError
func (c *RenderClient) doRequest(req *http.Request) ([]byte, error) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	c.logger.Debug("render request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("render request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("render response",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.APIError{
			StatusCode: resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Message:    errorMessage(respBody),
			Body:       string(respBody),
		}
	}
	return respBody, nil
}

// errorMessage pulls a human readable message out of the common error body
// shapes: {"detail": "..."}, {"error": "..."}, {"message": "..."} and
// {"error": {"message": "..."}}.
func errorMessage(body []byte) string {
	var shape struct {
		Detail  interface{}     `json:"detail"`
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &shape); err != nil {
		return ""
	}
	if s, ok := shape.Detail.(string); ok && s != "" {
		return s
	}
	if len(shape.Error) > 0 {
		var s string
		if err := json.Unmarshal(shape.Error, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(shape.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return shape.Message
}
