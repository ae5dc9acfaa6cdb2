package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipdeck/api/internal/jobs"
	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/service"
	"github.com/clipdeck/api/pkg/response"
)

// JobSnapshots reads job state persisted outside the in-memory registry,
// such as the Redis mirror after a restart.
type JobSnapshots interface {
	Load(ctx context.Context, id string) (model.Job, error)
}

type JobHandler struct {
	registry   *jobs.Registry
	generation *service.GenerationService
	snapshots  JobSnapshots
	validator  *validator.Validate
}

// NewJobHandler creates a job handler. snapshots may be nil.
func NewJobHandler(registry *jobs.Registry, generation *service.GenerationService, snapshots JobSnapshots, v *validator.Validate) *JobHandler {
	return &JobHandler{
		registry:   registry,
		generation: generation,
		snapshots:  snapshots,
		validator:  v,
	}
}

// List handles GET /api/jobs
// An optional projectId query narrows the list to one project.
func (h *JobHandler) List(c *fiber.Ctx) error {
	projectID := c.Query("projectId")
	all := h.registry.List()

	out := make([]model.JobResponse, 0, len(all))
	for _, job := range all {
		if projectID != "" && job.ProjectID != projectID {
			continue
		}
		out = append(out, jobResponse(job))
	}
	return response.OK(c, fiber.Map{"jobs": out})
}

// Get handles GET /api/jobs/:jobId
// Jobs missing from the registry are read from the persisted snapshots.
func (h *JobHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, ok := h.registry.Get(jobID)
	if !ok && h.snapshots != nil {
		var err error
		job, err = h.snapshots.Load(c.UserContext(), jobID)
		ok = err == nil
	}
	if !ok {
		return response.NotFound(c, "Job not found")
	}
	return response.OK(c, jobResponse(job))
}

// Track handles POST /api/jobs/:jobId/track
func (h *JobHandler) Track(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	var req model.TrackJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	job, err := h.generation.TrackJob(jobID, &req)
	if err != nil {
		if errors.Is(err, service.ErrUnknownObserver) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, jobResponse(job))
}

// Stop handles POST /api/jobs/:jobId/stop
// The job keeps its last known state.
func (h *JobHandler) Stop(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if !h.generation.StopJob(jobID) {
		if _, ok := h.registry.Get(jobID); !ok {
			return response.NotFound(c, "Job not found")
		}
	}

	job, _ := h.registry.Get(jobID)
	return response.OK(c, jobResponse(job))
}

// Delete handles DELETE /api/jobs/:jobId
func (h *JobHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if !h.generation.RemoveJob(jobID) {
		return response.NotFound(c, "Job not found")
	}
	return response.NoContent(c)
}

func jobResponse(job model.Job) model.JobResponse {
	return model.JobResponse{Job: job, Terminal: job.Status.IsTerminal()}
}
