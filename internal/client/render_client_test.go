package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clipdeck/api/internal/config"
	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/retry"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*RenderClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewRenderClient(
		&config.RenderConfig{BaseURL: srv.URL, APIKey: "secret", Timeout: 5},
		&config.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 2},
		WithRetryOptions(retry.Options{MaxAttempts: 3, Sleep: noSleep}),
	)
	return c, srv
}

func TestGenerateClip_Deferred(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathGenerateClip {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		var body clipRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.ProjectID != "p1" || body.Prompt != "Cinematic sky" || body.Provider != model.ProviderRunway {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte(`{"task_id":"t-42"}`))
	})

	res, err := c.GenerateClip(context.Background(), &model.GenerateClipRequest{
		ProjectID: "p1",
		Prompt:    "Cinematic sky",
		Provider:  model.ProviderRunway,
	})
	if err != nil {
		t.Fatalf("GenerateClip: %v", err)
	}
	d, ok := res.(model.Deferred)
	if !ok {
		t.Fatalf("result = %#v, want Deferred", res)
	}
	if d.Handle.JobID != "t-42" || d.Handle.Provider != model.ProviderRunway {
		t.Errorf("handle = %+v", d.Handle)
	}
}

func TestGenerateClip_RetriesServerErrors(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"clip":"https://cdn/c.mp4","duration":4}`))
	})

	res, err := c.GenerateClip(context.Background(), &model.GenerateClipRequest{ProjectID: "p", Prompt: "x", Provider: model.ProviderPika})
	if err != nil {
		t.Fatalf("GenerateClip: %v", err)
	}
	imm, ok := res.(model.Immediate)
	if !ok || imm.Media.URL != "https://cdn/c.mp4" || imm.Media.Duration != 4 {
		t.Errorf("result = %#v", res)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestGenerateClip_TerminalStatusNotRetried(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"projectId and prompt are required"}`))
	})

	_, err := c.GenerateClip(context.Background(), &model.GenerateClipRequest{ProjectID: "p", Prompt: "x", Provider: model.ProviderPika})
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	var f *retry.Failure
	if !errors.As(err, &f) {
		t.Fatalf("err = %v, want *retry.Failure", err)
	}
	if f.Retryable || f.UserMessage != retry.MessageBadRequest || f.Attempts != 1 {
		t.Errorf("failure = %+v", f)
	}
	var apiErr *retry.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "projectId and prompt are required" {
		t.Errorf("api error = %+v", apiErr)
	}
}

func TestGenerateClip_ExhaustedRetries(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GenerateClip(context.Background(), &model.GenerateClipRequest{ProjectID: "p", Prompt: "x", Provider: model.ProviderPika})
	f := retry.AsFailure(err)
	if f == nil || !f.Retryable || f.Attempts != 3 || f.UserMessage != retry.MessageServer {
		t.Errorf("failure = %+v", f)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestGenerateClip_UnrecognizedBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	_, err := c.GenerateClip(context.Background(), &model.GenerateClipRequest{ProjectID: "p", Prompt: "x", Provider: model.ProviderPika})
	if !errors.Is(err, ErrUnrecognizedResult) {
		t.Errorf("err = %v, want ErrUnrecognizedResult", err)
	}
}

func TestCheckStatus_SingleRequest(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.URL.Path != PathStatus {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body model.StatusRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.JobID != "j1" || body.Provider != model.ProviderPika {
			t.Errorf("body = %+v", body)
		}
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"status":"completed","video_url":"https://cdn/v.mp4"}`))
	})

	_, err := c.CheckStatus(context.Background(), "j1", model.ProviderPika)
	if retry.StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502 APIError", err)
	}

	resp, err := c.CheckStatus(context.Background(), "j1", model.ProviderPika)
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if resp.Status != model.PollStatusCompleted || resp.MediaURL() != "https://cdn/v.mp4" {
		t.Errorf("resp = %+v", resp)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestAssemble(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body model.AssembleRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.ProjectID != "p1" || len(body.Clips) != 2 || body.Clips[1].Start != 1 {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte(`{"video_url":"https://cdn/final.mp4","thumbnail":"https://cdn/t.jpg"}`))
	})

	resp, err := c.Assemble(context.Background(), "p1", []model.AssemblyClip{
		{Path: "a.mp4", Start: 0, End: 2},
		{Path: "b.mp4", Start: 1, End: 3},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if resp.VideoURL != "https://cdn/final.mp4" || resp.Thumbnail != "https://cdn/t.jpg" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGenerateScriptVoiceThumbnail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathGenerateScript:
			w.Write([]byte(`{"script":"[SCENE 1: Intro]\nHi"}`))
		case PathGenerateVoice:
			w.Write([]byte(`{"audio_url":"https://cdn/v.mp3","duration":12.5}`))
		case PathGenerateThumbnail:
			w.Write([]byte(`{"image_url":"https://cdn/t.png"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	script, err := c.GenerateScript(ctx, "volcanoes")
	if err != nil || script != "[SCENE 1: Intro]\nHi" {
		t.Errorf("script = %q, err = %v", script, err)
	}
	voice, err := c.GenerateVoice(ctx, &model.GenerateVoiceRequest{ProjectID: "p", Script: "hi"})
	if err != nil || voice.AudioURL != "https://cdn/v.mp3" || voice.Duration != 12.5 {
		t.Errorf("voice = %+v, err = %v", voice, err)
	}
	thumb, err := c.GenerateThumbnail(ctx, &model.GenerateThumbnailRequest{ProjectID: "p", Prompt: "x"})
	if err != nil || thumb.URL != "https://cdn/t.png" {
		t.Errorf("thumb = %+v, err = %v", thumb, err)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"bad prompt"}`, "bad prompt"},
		{`{"error":"quota"}`, "quota"},
		{`{"error":{"message":"nested"}}`, "nested"},
		{`{"message":"plain"}`, "plain"},
		{`not json`, ""},
		{`{"detail":[{"loc":["body"]}]}`, ""},
	}
	for _, tt := range tests {
		if got := errorMessage([]byte(tt.body)); got != tt.want {
			t.Errorf("errorMessage(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
