package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/clipdeck/api/internal/client"
	"github.com/clipdeck/api/internal/jobs"
	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/metrics"
	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/scene"
)

// DefaultClipDuration is assumed for generated media that reports no length.
const DefaultClipDuration = 5.0

var ErrUnknownObserver = errors.New("unknown observer mode")

// ClipGenerator submits clip generations to the render backend
type ClipGenerator interface {
	GenerateClip(ctx context.Context, req *model.GenerateClipRequest) (model.GenerationResult, error)
}

// GenerationService submits clip generations, follows deferred jobs with the
// configured observer and writes terminal outcomes back onto the timeline.
type GenerationService struct {
	generator   ClipGenerator
	registry    *jobs.Registry
	timelines   *TimelineService
	observers   map[string]jobs.Observer
	defaultMode string
	dispatcher  Dispatcher
	limit       int
	newID       func() string
	logger      *slog.Logger
	metrics     *metrics.Metrics

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	active map[string]*tracking // by job id
	byClip map[string]string    // project/clip -> job id
}

// tracking is one observed job. Stop may race with Observe returning, so
// the observation is attached under its own lock.
type tracking struct {
	projectID string
	clipID    string
	cancel    context.CancelFunc

	mu          sync.Mutex
	observation jobs.Observation
	stopped     bool
}

func (t *tracking) attach(o jobs.Observation) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		o.Stop()
		return
	}
	t.observation = o
	t.mu.Unlock()
}

func (t *tracking) stop() {
	t.mu.Lock()
	t.stopped = true
	o := t.observation
	t.observation = nil
	t.mu.Unlock()

	t.cancel()
	if o != nil {
		o.Stop()
	}
}

// GenerationOption configures a GenerationService
type GenerationOption func(*GenerationService)

// WithObserver registers an observer under its Mode
func WithObserver(o jobs.Observer) GenerationOption {
	return func(s *GenerationService) { s.observers[o.Mode()] = o }
}

// WithDefaultObserver picks the mode used when a request names none
func WithDefaultObserver(mode string) GenerationOption {
	return func(s *GenerationService) { s.defaultMode = mode }
}

// WithMaxConcurrent bounds in-flight submissions of GenerateAll
func WithMaxConcurrent(n int) GenerationOption {
	return func(s *GenerationService) { s.limit = n }
}

// WithDispatcher replaces the in-process dispatcher
func WithDispatcher(d Dispatcher) GenerationOption {
	return func(s *GenerationService) { s.dispatcher = d }
}

func WithIDGenerator(fn func() string) GenerationOption {
	return func(s *GenerationService) { s.newID = fn }
}

func WithGenerationLogger(l *slog.Logger) GenerationOption {
	return func(s *GenerationService) { s.logger = l }
}

func WithGenerationMetrics(m *metrics.Metrics) GenerationOption {
	return func(s *GenerationService) { s.metrics = m }
}

func NewGenerationService(generator ClipGenerator, registry *jobs.Registry, timelines *TimelineService, opts ...GenerationOption) *GenerationService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &GenerationService{
		generator:   generator,
		registry:    registry,
		timelines:   timelines,
		observers:   make(map[string]jobs.Observer),
		defaultMode: jobs.ModePoll,
		limit:       3,
		newID:       uuid.NewString,
		logger:      logging.Discard(),
		baseCtx:     ctx,
		cancel:      cancel,
		active:      make(map[string]*tracking),
		byClip:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "generation_service")
	if s.dispatcher == nil {
		s.dispatcher = NewInlineDispatcher(s.GenerateClip, s.limit)
	}
	return s
}

// GenerateClip submits (or regenerates) one clip. Immediate media is written
// to the clip right away; a deferred job is registered and observed until it
// reaches a terminal status. A previous observation of the same clip is
// stopped first.
func (s *GenerationService) GenerateClip(ctx context.Context, req *model.GenerateClipRequest) (*model.GenerateResponse, error) {
	mode, err := s.resolveMode(req.Observer)
	if err != nil {
		return nil, err
	}

	submission := *req
	if submission.ClipID == "" {
		submission.ClipID = s.newID()
	}
	projectID, clipID := submission.ProjectID, submission.ClipID
	log := logging.WithProjectID(s.logger, projectID).With("clip_id", clipID)

	s.stopClip(projectID, clipID)
	s.preparePlaceholder(&submission)

	result, err := s.generator.GenerateClip(ctx, &submission)
	if err != nil {
		s.setClipStatus(projectID, clipID, model.GenerationStatusFailed)
		s.metrics.RecordGeneration(string(model.GenerationKindClip), "failed")
		log.Warn("clip submission failed", "error", err)
		return nil, err
	}

	switch r := result.(type) {
	case model.Immediate:
		s.applyMedia(projectID, clipID, "", r.Media)
		s.metrics.RecordGeneration(string(model.GenerationKindClip), "immediate")
		log.Info("clip generated immediately")
		media := r.Media
		return &model.GenerateResponse{ClipID: clipID, Status: model.JobStatusSucceeded, Media: &media}, nil

	case model.Deferred:
		handle := r.Handle
		if handle.Provider == "" {
			handle.Provider = submission.Provider
		}
		job := s.registry.Register(model.Job{
			ID:        handle.JobID,
			ProjectID: projectID,
			Type:      model.GenerationKindClip,
			Provider:  handle.Provider,
		})
		processing := model.GenerationStatusProcessing
		s.timelines.Timeline(projectID).UpdateClip(clipID, model.ClipPatch{
			JobID:            &handle.JobID,
			GenerationStatus: &processing,
		})
		s.observe(mode, handle, projectID, clipID)
		s.metrics.RecordGeneration(string(model.GenerationKindClip), "deferred")
		log.Info("clip generation deferred", "job_id", handle.JobID, "observer", mode.Mode())
		return &model.GenerateResponse{ClipID: clipID, Status: job.Status, JobID: handle.JobID}, nil

	default:
		return nil, fmt.Errorf("unsupported generation result %T", result)
	}
}

// GenerateAll submits one clip per scene. Placeholders are inserted in scene
// order before any submission, so the timeline order does not depend on
// which provider answers first.
func (s *GenerationService) GenerateAll(ctx context.Context, req *model.GenerateScenesRequest) (*model.GenerateScenesResponse, error) {
	if _, err := s.resolveMode(req.Observer); err != nil {
		return nil, err
	}

	scenes := scene.Renumber(req.Scenes)
	reqs := make([]*model.GenerateClipRequest, len(scenes))
	for i, sc := range scenes {
		reqs[i] = &model.GenerateClipRequest{
			ProjectID: req.ProjectID,
			ClipID:    ClipIDForScene(sc.ID),
			SceneID:   sc.ID,
			Prompt:    scene.PromptFor(sc),
			Provider:  req.Provider,
			Observer:  req.Observer,
		}
		s.preparePlaceholder(reqs[i])
	}

	s.logger.Info("submitting scenes", "project_id", req.ProjectID, "scenes", len(reqs))
	return &model.GenerateScenesResponse{Results: s.dispatcher.Dispatch(ctx, reqs)}, nil
}

// ClipIDForScene derives the timeline clip id of a scene
func ClipIDForScene(sceneID string) string {
	return "clip-" + sceneID
}

// TrackJob starts observing an existing remote job that is not bound to a clip.
func (s *GenerationService) TrackJob(jobID string, req *model.TrackJobRequest) (model.Job, error) {
	mode, err := s.resolveMode(req.Observer)
	if err != nil {
		return model.Job{}, err
	}
	if _, ok := s.registry.Get(jobID); !ok {
		s.registry.Register(model.Job{ID: jobID, Type: model.GenerationKindClip, Provider: req.Provider})
	}

	s.observe(mode, model.JobHandle{JobID: jobID, Provider: req.Provider}, "", "")
	job, _ := s.registry.Get(jobID)
	return job, nil
}

// StopJob stops observing a job. The job keeps its last known state.
func (s *GenerationService) StopJob(jobID string) bool {
	s.mu.Lock()
	t, ok := s.active[jobID]
	if ok {
		s.forgetLocked(jobID, t)
	}
	s.mu.Unlock()

	if ok {
		t.stop()
	}
	return ok
}

// RemoveJob stops observing a job and drops it from the registry.
func (s *GenerationService) RemoveJob(jobID string) bool {
	s.StopJob(jobID)
	return s.registry.Remove(jobID)
}

// Active returns the number of jobs currently observed
func (s *GenerationService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shutdown stops every observation and waits for the outcome writers.
func (s *GenerationService) Shutdown() {
	s.cancel()

	s.mu.Lock()
	all := make([]*tracking, 0, len(s.active))
	for id, t := range s.active {
		all = append(all, t)
		s.forgetLocked(id, t)
	}
	s.mu.Unlock()

	for _, t := range all {
		t.stop()
	}
	s.wg.Wait()
}

func (s *GenerationService) resolveMode(mode string) (jobs.Observer, error) {
	if mode == "" {
		mode = s.defaultMode
	}
	o, ok := s.observers[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownObserver, mode)
	}
	return o, nil
}

// observe starts the observer and a writer that applies the terminal state
// of the job to its clip.
func (s *GenerationService) observe(o jobs.Observer, handle model.JobHandle, projectID, clipID string) {
	jobID := handle.JobID
	if clipID != "" {
		handle.Owner = clipKey(projectID, clipID)
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	t := &tracking{projectID: projectID, clipID: clipID, cancel: cancel}

	s.mu.Lock()
	prev, hadPrev := s.active[jobID]
	if hadPrev {
		s.forgetLocked(jobID, prev)
	}
	s.active[jobID] = t
	if clipID != "" {
		s.byClip[clipKey(projectID, clipID)] = jobID
	}
	s.mu.Unlock()
	if hadPrev {
		prev.stop()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job, err := jobs.WaitTerminal(ctx, s.registry, jobID)
		owned := s.release(jobID, t)
		if err != nil || !owned {
			return
		}
		s.applyOutcome(projectID, clipID, job)
	}()

	observation, err := o.Observe(ctx, handle)
	if err != nil {
		s.logger.Warn("observer failed to start", "job_id", jobID, "mode", o.Mode(), "error", err)
		if job, ok := s.registry.Get(jobID); ok && !job.Status.IsTerminal() {
			s.registry.Update(jobID, model.JobUpdate{
				Status:    model.StatusPtr(model.JobStatusFailed),
				Message:   model.StringPtr(err.Error()),
				Retryable: model.BoolPtr(true),
			})
		}
		return
	}
	t.attach(observation)
}

// release ends the tracking if it is still the current one for the job.
func (s *GenerationService) release(jobID string, t *tracking) bool {
	s.mu.Lock()
	owned := s.active[jobID] == t
	if owned {
		s.forgetLocked(jobID, t)
	}
	s.mu.Unlock()
	if owned {
		t.stop()
	}
	return owned
}

func (s *GenerationService) forgetLocked(jobID string, t *tracking) {
	delete(s.active, jobID)
	if t.clipID != "" {
		key := clipKey(t.projectID, t.clipID)
		if s.byClip[key] == jobID {
			delete(s.byClip, key)
		}
	}
}

func (s *GenerationService) stopClip(projectID, clipID string) {
	s.mu.Lock()
	jobID, ok := s.byClip[clipKey(projectID, clipID)]
	s.mu.Unlock()
	if ok {
		s.StopJob(jobID)
	}
}

// preparePlaceholder makes sure the clip exists and is marked as processing.
func (s *GenerationService) preparePlaceholder(req *model.GenerateClipRequest) {
	tl := s.timelines.Timeline(req.ProjectID)
	processing := model.GenerationStatusProcessing
	if _, ok := tl.Get(req.ClipID); !ok {
		tl.Insert(model.Clip{
			ID:               req.ClipID,
			SceneID:          req.SceneID,
			Provider:         req.Provider,
			Prompt:           req.Prompt,
			GenerationStatus: processing,
		})
		return
	}
	noJob := ""
	tl.UpdateClip(req.ClipID, model.ClipPatch{
		Provider:         &req.Provider,
		Prompt:           &req.Prompt,
		JobID:            &noJob,
		GenerationStatus: &processing,
	})
}

// applyOutcome writes the terminal state of job onto its clip. A clip that
// was regenerated since is bound to another job and is left alone.
func (s *GenerationService) applyOutcome(projectID, clipID string, job model.Job) bool {
	if clipID == "" {
		return false
	}
	if job.Status == model.JobStatusSucceeded {
		if res, err := client.NormalizeGeneration(job.Result, job.Provider); err == nil {
			if imm, ok := res.(model.Immediate); ok {
				return s.applyMedia(projectID, clipID, job.ID, imm.Media)
			}
		}
		s.logger.Warn("job succeeded without media", "job_id", job.ID, "clip_id", clipID)
	}
	status := model.GenerationStatusFor(job.Status)
	_, ok := s.timelines.Timeline(projectID).UpdateClip(clipID, model.ClipPatch{
		GenerationStatus: &status,
		IfJobID:          &job.ID,
	})
	return ok
}

// applyMedia stores media on the clip. A non-empty jobID makes the write
// conditional on the clip still being bound to that job.
func (s *GenerationService) applyMedia(projectID, clipID, jobID string, media model.Media) bool {
	tl := s.timelines.Timeline(projectID)
	completed := model.GenerationStatusCompleted
	patch := model.ClipPatch{URL: &media.URL, GenerationStatus: &completed}
	if jobID != "" {
		patch.IfJobID = &jobID
	}
	if media.ThumbnailURL != "" {
		patch.ThumbnailURL = &media.ThumbnailURL
	}

	duration := media.Duration
	if duration <= 0 {
		duration = DefaultClipDuration
		if c, ok := tl.Get(clipID); ok && c.SourceDuration > 0 {
			duration = c.SourceDuration
		}
	}
	patch.SourceDuration = &duration
	_, ok := tl.UpdateClip(clipID, patch)
	return ok
}

func (s *GenerationService) setClipStatus(projectID, clipID string, status model.GenerationStatus) {
	s.timelines.Timeline(projectID).UpdateClip(clipID, model.ClipPatch{GenerationStatus: &status})
}

func clipKey(projectID, clipID string) string {
	return projectID + "/" + clipID
}
