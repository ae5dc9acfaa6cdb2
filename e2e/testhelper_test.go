package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/clipdeck/api/internal/auth"
	"github.com/clipdeck/api/internal/client"
	"github.com/clipdeck/api/internal/config"
	"github.com/clipdeck/api/internal/handler"
	"github.com/clipdeck/api/internal/jobs"
	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/metrics"
	"github.com/clipdeck/api/internal/middleware"
	"github.com/clipdeck/api/internal/service"
	"github.com/clipdeck/api/internal/tracker"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	backend  *fakeBackend
	registry *jobs.Registry
}

// fakeBackend stands in for the render backend. Prompts containing
// "instant" answer with media, "reject" answers 400, anything else returns a
// job that completes after doneAfter status polls.
type fakeBackend struct {
	mu        sync.Mutex
	seq       int
	polls     map[string]int
	doneAfter int
	assembled [][]map[string]interface{}
}

func (b *fakeBackend) pollCount(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls[jobID]
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch r.URL.Path {
	case client.PathGenerateClip:
		prompt, _ := body["prompt"].(string)
		switch {
		case strings.Contains(prompt, "reject"):
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"detail": "prompt rejected"})
		case strings.Contains(prompt, "instant"):
			writeJSON(w, http.StatusOK, map[string]interface{}{"video_url": "https://cdn.test/instant.mp4", "duration": 4})
		default:
			b.seq++
			writeJSON(w, http.StatusOK, map[string]interface{}{"job_id": fmt.Sprintf("job-%d", b.seq)})
		}

	case client.PathStatus:
		jobID, _ := body["job_id"].(string)
		b.polls[jobID]++
		if b.polls[jobID] < b.doneAfter {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "processing", "progress": 50})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "completed", "video_url": "https://cdn.test/" + jobID + ".mp4"})

	case client.PathAssemble:
		clips, _ := body["clips"].([]interface{})
		batch := make([]map[string]interface{}, 0, len(clips))
		for _, c := range clips {
			if m, ok := c.(map[string]interface{}); ok {
				batch = append(batch, m)
			}
		}
		b.assembled = append(b.assembled, batch)
		writeJSON(w, http.StatusOK, map[string]interface{}{"video_url": "https://cdn.test/final.mp4"})

	case client.PathGenerateScript:
		writeJSON(w, http.StatusOK, map[string]interface{}{"script": "[SCENE 1: Harbor]\nBoats at dawn\n[SCENE 2: Market]\nA busy fish market"})

	case client.PathGenerateVoice:
		writeJSON(w, http.StatusOK, map[string]interface{}{"audio_url": "https://cdn.test/voice.mp3", "duration": 9.5})

	case client.PathGenerateThumbnail:
		writeJSON(w, http.StatusOK, map[string]interface{}{"image_url": "https://cdn.test/thumb.png"})

	default:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"detail": "not found"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// setupApp wires the app the way main.go does, against a fake render
// backend. The Redis client points at a closed port so the rate limiter
// fails open.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	backend := &fakeBackend{polls: make(map[string]int), doneAfter: 2}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	redisClient := redis.NewClient(&redis.Options{
		Addr:       "127.0.0.1:1",
		MaxRetries: -1,
	})
	t.Cleanup(func() { redisClient.Close() })

	logger := logging.Discard()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	renderClient := client.NewRenderClient(
		&config.RenderConfig{BaseURL: srv.URL, Timeout: 5},
		&config.RetryConfig{MaxAttempts: 2, InitialDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond, BackoffMultiplier: 2},
		client.WithRenderLogger(logger),
		client.WithRenderMetrics(m),
	)

	registry := jobs.NewRegistry()
	pollTracker := tracker.New(renderClient,
		tracker.WithDefaults(tracker.Options{PollInterval: 20 * time.Millisecond, MaxAttempts: 50}),
		tracker.WithMetrics(m),
	)

	timelineService := service.NewTimelineService(renderClient, logger)
	generationService := service.NewGenerationService(renderClient, registry, timelineService,
		service.WithObserver(tracker.NewPollObserver(pollTracker, registry, tracker.Options{})),
		service.WithMaxConcurrent(2),
		service.WithGenerationLogger(logger),
		service.WithGenerationMetrics(m),
	)
	t.Cleanup(generationService.Shutdown)

	groqClient := client.NewGroqClient(&config.GroqConfig{}, logger) // no API key
	sceneService := service.NewSceneService(groqClient, renderClient, logger)
	uploadService := service.NewUploadService(nil) // mock storage

	validate := validator.New()
	handlers := &handler.Handlers{
		Scenes:   handler.NewSceneHandler(sceneService, validate),
		Generate: handler.NewGenerateHandler(generationService, sceneService, renderClient, validate),
		Jobs:     handler.NewJobHandler(registry, generationService, nil, validate),
		Timeline: handler.NewTimelineHandler(timelineService, validate),
		Upload:   handler.NewUploadHandler(uploadService, validate),
	}

	authHandler := handler.NewAuthHandler(nil, testJWTSecret)
	authMiddleware := middleware.NewLegacyAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient, logger)

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"render": renderClient.IsConfigured(),
				"groq":   groqClient.IsConfigured(),
				"r2":     false,
				"auth":   true,
			},
		})
	})
	app.Get("/metrics", metrics.Handler())
	app.Get("/auth/verify", authHandler.Verify)

	api := app.Group("/api", authMiddleware.Authenticate())
	handlers.Mount(api, handler.Limits{
		Generate: rateLimiter.GenerateLimit(10000),
		Scenes:   rateLimiter.ScenesLimit(10000),
		Upload:   rateLimiter.UploadLimit(10000),
	})

	return &testApp{app: app, backend: backend, registry: registry}
}

// generateToken creates a legacy HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.IssueLegacyToken("test-user-123", "test@example.com", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for !cond() {
		select {
		case <-ctx.Done():
			t.Fatalf("timed out: %s", msg)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
