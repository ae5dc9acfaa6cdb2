package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("retry.max_attempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.InitialDelay != time.Second || cfg.Retry.MaxDelay != 10*time.Second {
		t.Errorf("retry delays = %v/%v", cfg.Retry.InitialDelay, cfg.Retry.MaxDelay)
	}
	if cfg.Retry.BackoffMultiplier != 2 {
		t.Errorf("retry.backoff_multiplier = %v", cfg.Retry.BackoffMultiplier)
	}
	if cfg.Poll.Interval != 3*time.Second || cfg.Poll.MaxAttempts != 60 {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.Push.Heartbeat != 30*time.Second {
		t.Errorf("push.heartbeat = %v", cfg.Push.Heartbeat)
	}
	if cfg.Generation.MaxConcurrent != 3 {
		t.Errorf("generation.max_concurrent = %d", cfg.Generation.MaxConcurrent)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("GENERATION_OBSERVER", "PUSH")
	t.Setenv("RENDER_BASE_URL", "http://render.internal/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Poll.Interval != 500*time.Millisecond {
		t.Errorf("poll.interval = %v", cfg.Poll.Interval)
	}
	if cfg.Generation.Observer != "push" {
		t.Errorf("generation.observer = %q", cfg.Generation.Observer)
	}
	if cfg.Render.BaseURL != "http://render.internal" {
		t.Errorf("render.base_url = %q", cfg.Render.BaseURL)
	}
}

func TestReadSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  s3cr3t\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CLIPDECK_TEST_SECRET", "")
	t.Setenv("CLIPDECK_TEST_SECRET_FILE", path)
	readSecret("CLIPDECK_TEST_SECRET")

	if got := os.Getenv("CLIPDECK_TEST_SECRET"); got != "s3cr3t" {
		t.Errorf("secret = %q, want s3cr3t", got)
	}
}
