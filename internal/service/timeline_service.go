package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/timeline"
)

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrNothingToAssemble = errors.New("timeline has no clips with media")
)

// Assembler concatenates trimmed clips into a final video
type Assembler interface {
	Assemble(ctx context.Context, projectID string, clips []model.AssemblyClip) (*model.AssembleResponse, error)
}

// TimelineService owns one timeline per project
type TimelineService struct {
	mu        sync.RWMutex
	timelines map[string]*timeline.Timeline
	assembler Assembler
	logger    *slog.Logger
}

func NewTimelineService(assembler Assembler, logger *slog.Logger) *TimelineService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TimelineService{
		timelines: make(map[string]*timeline.Timeline),
		assembler: assembler,
		logger:    logging.WithComponent(logger, "timeline_service"),
	}
}

// Timeline returns the project's timeline, creating an empty one on first use.
func (s *TimelineService) Timeline(projectID string) *timeline.Timeline {
	s.mu.RLock()
	tl, ok := s.timelines[projectID]
	s.mu.RUnlock()
	if ok {
		return tl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tl, ok := s.timelines[projectID]; ok {
		return tl
	}
	tl = timeline.New()
	s.timelines[projectID] = tl
	return tl
}

// Lookup returns the project's timeline without creating it.
func (s *TimelineService) Lookup(projectID string) (*timeline.Timeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tl, ok := s.timelines[projectID]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return tl, nil
}

// Snapshot returns the read model of the project's timeline
func (s *TimelineService) Snapshot(projectID string) model.TimelineResponse {
	return s.Timeline(projectID).Snapshot(projectID)
}

// Set replaces the project's clips
func (s *TimelineService) Set(projectID string, clips []model.Clip) model.TimelineResponse {
	tl := s.Timeline(projectID)
	tl.SetAll(clips)
	return tl.Snapshot(projectID)
}

// Insert appends a clip built from req. A missing id is generated.
func (s *TimelineService) Insert(projectID string, req *model.InsertClipRequest, newID func() string) model.MutationResponse {
	c := model.Clip{
		ID:             req.ID,
		SourceDuration: req.SourceDuration,
		Path:           req.Path,
		URL:            req.URL,
		ThumbnailURL:   req.ThumbnailURL,
		SceneID:        req.SceneID,
		Provider:       req.Provider,
		Prompt:         req.Prompt,
	}
	if c.ID == "" {
		c.ID = newID()
	}
	if req.TrimStart != nil {
		c.TrimStart = *req.TrimStart
	}
	if req.TrimEnd != nil {
		c.TrimEnd = *req.TrimEnd
	}

	tl := s.Timeline(projectID)
	_, applied := tl.Insert(c)
	return s.mutation(projectID, tl, applied)
}

// Mutate runs fn against an existing project timeline and reports the result.
func (s *TimelineService) Mutate(projectID string, fn func(tl *timeline.Timeline) bool) (model.MutationResponse, error) {
	tl, err := s.Lookup(projectID)
	if err != nil {
		return model.MutationResponse{}, err
	}
	return s.mutation(projectID, tl, fn(tl)), nil
}

// Assemble sends the ordered trimmed clips of the project to the assembler.
func (s *TimelineService) Assemble(ctx context.Context, projectID string) (*model.AssembleResponse, error) {
	tl, err := s.Lookup(projectID)
	if err != nil {
		return nil, err
	}
	clips := tl.AssemblyDescriptors()
	if len(clips) == 0 {
		return nil, ErrNothingToAssemble
	}

	log := logging.WithProjectID(s.logger, projectID)
	log.Info("assembling timeline", "clips", len(clips), "duration", tl.TotalDuration())

	resp, err := s.assembler.Assemble(ctx, projectID, clips)
	if err != nil {
		log.Warn("assembly failed", "error", err)
		return nil, fmt.Errorf("assemble project %s: %w", projectID, err)
	}
	return resp, nil
}

// Delete drops the project's timeline
func (s *TimelineService) Delete(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timelines[projectID]; !ok {
		return false
	}
	delete(s.timelines, projectID)
	return true
}

func (s *TimelineService) mutation(projectID string, tl *timeline.Timeline, applied bool) model.MutationResponse {
	return model.MutationResponse{Applied: applied, Timeline: tl.Snapshot(projectID)}
}
