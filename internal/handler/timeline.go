package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/service"
	"github.com/clipdeck/api/internal/timeline"
	"github.com/clipdeck/api/pkg/response"
)

type TimelineHandler struct {
	service   *service.TimelineService
	validator *validator.Validate
}

func NewTimelineHandler(svc *service.TimelineService, v *validator.Validate) *TimelineHandler {
	return &TimelineHandler{
		service:   svc,
		validator: v,
	}
}

// Get handles GET /api/projects/:projectId/timeline
func (h *TimelineHandler) Get(c *fiber.Ctx) error {
	return response.OK(c, h.service.Snapshot(c.Params("projectId")))
}

// Put handles PUT /api/projects/:projectId/timeline
// The clips replace the whole timeline and are ordered by orderIndex.
func (h *TimelineHandler) Put(c *fiber.Ctx) error {
	var req model.SetTimelineRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	return response.OK(c, h.service.Set(c.Params("projectId"), req.Clips))
}

// Delete handles DELETE /api/projects/:projectId/timeline
func (h *TimelineHandler) Delete(c *fiber.Ctx) error {
	if !h.service.Delete(c.Params("projectId")) {
		return response.NotFound(c, "Project not found")
	}
	return response.NoContent(c)
}

// InsertClip handles POST /api/projects/:projectId/timeline/clips
func (h *TimelineHandler) InsertClip(c *fiber.Ctx) error {
	var req model.InsertClipRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result := h.service.Insert(c.Params("projectId"), &req, uuid.NewString)
	if !result.Applied {
		return response.Conflict(c, "Clip already exists")
	}
	return response.Created(c, result)
}

// RemoveClip handles DELETE /api/projects/:projectId/timeline/clips/:clipId
func (h *TimelineHandler) RemoveClip(c *fiber.Ctx) error {
	clipID := c.Params("clipId")
	return h.mutate(c, func(tl *timeline.Timeline) bool {
		return tl.Remove(clipID)
	})
}

// MoveClip handles POST /api/projects/:projectId/timeline/clips/:clipId/move
func (h *TimelineHandler) MoveClip(c *fiber.Ctx) error {
	var req model.MoveClipRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	clipID := c.Params("clipId")
	return h.mutate(c, func(tl *timeline.Timeline) bool {
		return tl.MoveTo(clipID, *req.NewIndex)
	})
}

// TrimClip handles POST /api/projects/:projectId/timeline/clips/:clipId/trim
// An out-of-range trim is reported with applied=false and changes nothing.
func (h *TimelineHandler) TrimClip(c *fiber.Ctx) error {
	var req model.TrimClipRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	clipID := c.Params("clipId")
	return h.mutate(c, func(tl *timeline.Timeline) bool {
		return tl.Trim(clipID, *req.Start, *req.End)
	})
}

// Select handles POST /api/projects/:projectId/timeline/select
func (h *TimelineHandler) Select(c *fiber.Ctx) error {
	var req model.SelectClipRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	return h.mutate(c, func(tl *timeline.Timeline) bool {
		return tl.Select(req.ClipID)
	})
}

// Scrub handles POST /api/projects/:projectId/timeline/scrub
func (h *TimelineHandler) Scrub(c *fiber.Ctx) error {
	var req model.ScrubRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	tl, err := h.service.Lookup(c.Params("projectId"))
	if err != nil {
		return response.NotFound(c, "Project not found")
	}
	return response.OK(c, model.ScrubResponse{ScrubTime: tl.SetScrubTime(*req.Time)})
}

// Assemble handles POST /api/projects/:projectId/timeline/assemble
func (h *TimelineHandler) Assemble(c *fiber.Ctx) error {
	result, err := h.service.Assemble(c.UserContext(), c.Params("projectId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProjectNotFound):
			return response.NotFound(c, "Project not found")
		case errors.Is(err, service.ErrNothingToAssemble):
			return response.ValidationError(c, "Timeline has no clips with media", nil)
		}
		return response.Failure(c, err)
	}

	return response.OK(c, result)
}

func (h *TimelineHandler) mutate(c *fiber.Ctx, fn func(tl *timeline.Timeline) bool) error {
	result, err := h.service.Mutate(c.Params("projectId"), fn)
	if err != nil {
		return response.NotFound(c, "Project not found")
	}
	return response.OK(c, result)
}
