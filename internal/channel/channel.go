// Package channel tracks remote jobs over a persistent push connection and
// funnels their events into the job registry.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clipdeck/api/internal/jobs"
	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/metrics"
	"github.com/clipdeck/api/internal/model"
)

const (
	DefaultHeartbeat = 30 * time.Second

	// MessageConnectionError is stored on the job when the transport fails.
	MessageConnectionError = "Connection error"
	// MessageJobFailed is used when an error event carries no message.
	MessageJobFailed = "Job failed"
)

// Channel opens push connections for jobs.
type Channel struct {
	registry  *jobs.Registry
	source    Source
	heartbeat time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Channel)

func WithHeartbeat(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.heartbeat = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

func New(registry *jobs.Registry, source Source, opts ...Option) *Channel {
	c := &Channel{
		registry:  registry,
		source:    source,
		heartbeat: DefaultHeartbeat,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "channel")
	return c
}

// Handle is an open push connection for one job.
type Handle struct {
	jobID  string
	stream Stream
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	closeOnce sync.Once
}

// Open registers the job at queued/0, connects the transport and starts
// applying events. A connection failure is recorded on the job.
func (c *Channel) Open(ctx context.Context, jobID string) (*Handle, error) {
	job, ok := c.registry.Get(jobID)
	if !ok {
		job = model.Job{ID: jobID}
	}
	job.Status = model.JobStatusQueued
	job.Progress = 0
	c.registry.Register(job)

	stream, err := c.source.Connect(ctx, jobID)
	if err != nil {
		c.markConnectionError(jobID, err)
		return nil, fmt.Errorf("open push channel for job %s: %w", jobID, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		jobID:  jobID,
		stream: stream,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	h.wg.Add(2)
	go c.readLoop(runCtx, h)
	go c.heartbeatLoop(runCtx, h)
	go func() {
		h.wg.Wait()
		close(h.done)
	}()

	c.logger.Info("push channel opened", "job_id", jobID)
	return h, nil
}

// JobID returns the tracked job id
func (h *Handle) JobID() string { return h.jobID }

// Done is closed once the connection has been released, either by Close,
// by a terminal event or by a transport failure.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Close releases the connection and waits for the event loop to exit.
// The last known registry state is left untouched.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		_ = h.stream.Close()
	})
	<-h.done
}

// Stop is Close, satisfying jobs.Observation.
func (h *Handle) Stop() { h.Close() }

func (c *Channel) readLoop(ctx context.Context, h *Handle) {
	defer h.wg.Done()
	defer h.cancel()

	for {
		raw, err := h.stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrStreamClosed) {
				return
			}
			c.markConnectionError(h.jobID, err)
			_ = h.stream.Close()
			return
		}
		if ctx.Err() != nil {
			return
		}

		var event model.PushEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.logger.Warn("malformed push event", "job_id", h.jobID, "error", err)
			continue
		}

		if terminal := c.apply(h.jobID, event); terminal {
			_ = h.stream.Close()
			return
		}
	}
}

func (c *Channel) heartbeatLoop(ctx context.Context, h *Handle) {
	defer h.wg.Done()

	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := h.stream.Heartbeat(hbCtx)
			cancel()
			if err != nil && ctx.Err() == nil {
				c.logger.Warn("push heartbeat failed", "job_id", h.jobID, "error", err)
			}
		}
	}
}

// apply merges one event into the registry and reports whether it was terminal.
func (c *Channel) apply(jobID string, event model.PushEvent) bool {
	c.metrics.RecordPushEvent(event.Type)

	switch event.Type {
	case model.WSMessageTypeProgress:
		u := model.JobUpdate{Status: model.StatusPtr(model.JobStatusRunning)}
		if event.Progress != nil {
			u.Progress = model.IntPtr(clampProgress(*event.Progress))
		}
		if event.Message != "" {
			u.Message = model.StringPtr(event.Message)
		}
		c.registry.Update(jobID, u)
		return false

	case model.WSMessageTypeStatus:
		status := model.JobStatusRunning
		if parsed, ok := model.ParseJobStatus(event.Status); ok && parsed.IsTerminal() {
			status = parsed
		}
		u := model.JobUpdate{Status: model.StatusPtr(status)}
		if event.Message != "" {
			u.Message = model.StringPtr(event.Message)
		}
		if status == model.JobStatusFailed && event.Message == "" {
			u.Message = model.StringPtr(MessageJobFailed)
		}
		c.registry.Update(jobID, u)
		if status.IsTerminal() {
			c.metrics.RecordOutcome(string(status))
		}
		return status.IsTerminal()

	case model.WSMessageTypeComplete:
		u := model.JobUpdate{
			Status:   model.StatusPtr(model.JobStatusSucceeded),
			Progress: model.IntPtr(100),
			Result:   event.Result,
		}
		if event.Message != "" {
			u.Message = model.StringPtr(event.Message)
		}
		c.registry.Update(jobID, u)
		c.metrics.RecordOutcome(string(model.JobStatusSucceeded))
		c.logger.Info("push job completed", "job_id", jobID)
		return true

	case model.WSMessageTypeError:
		msg := event.Message
		if msg == "" {
			msg = MessageJobFailed
		}
		c.registry.Update(jobID, model.JobUpdate{
			Status:    model.StatusPtr(model.JobStatusFailed),
			Message:   model.StringPtr(msg),
			Retryable: model.BoolPtr(true),
		})
		c.metrics.RecordOutcome(string(model.JobStatusFailed))
		c.logger.Warn("push job failed", "job_id", jobID, "message", msg)
		return true

	case model.WSMessageTypeConnected, model.WSMessageTypePong:
		c.logger.Debug("push control message", "job_id", jobID, "type", event.Type)
		return false

	default:
		c.logger.Debug("ignoring push event", "job_id", jobID, "type", event.Type)
		return false
	}
}

func (c *Channel) markConnectionError(jobID string, err error) {
	c.logger.Warn("push transport error", "job_id", jobID, "error", err)
	c.registry.Update(jobID, model.JobUpdate{
		Status:    model.StatusPtr(model.JobStatusFailed),
		Message:   model.StringPtr(MessageConnectionError),
		Retryable: model.BoolPtr(true),
	})
	c.metrics.RecordOutcome(string(model.JobStatusFailed))
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
