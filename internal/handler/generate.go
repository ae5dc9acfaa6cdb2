package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipdeck/api/internal/client"
	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/service"
	"github.com/clipdeck/api/pkg/response"
)

// MediaGenerator produces the non-clip assets of a project
type MediaGenerator interface {
	GenerateVoice(ctx context.Context, req *model.GenerateVoiceRequest) (*client.VoiceResult, error)
	GenerateThumbnail(ctx context.Context, req *model.GenerateThumbnailRequest) (*client.ThumbnailResult, error)
}

type GenerateHandler struct {
	generation *service.GenerationService
	scenes     *service.SceneService
	media      MediaGenerator
	validator  *validator.Validate
}

func NewGenerateHandler(generation *service.GenerationService, scenes *service.SceneService, media MediaGenerator, v *validator.Validate) *GenerateHandler {
	return &GenerateHandler{
		generation: generation,
		scenes:     scenes,
		media:      media,
		validator:  v,
	}
}

// Clip handles POST /api/generate/clip
// Immediate media answers 200, a deferred job answers 202 with its id.
func (h *GenerateHandler) Clip(c *fiber.Ctx) error {
	var req model.GenerateClipRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.generation.GenerateClip(c.UserContext(), &req)
	if err != nil {
		return generationError(c, err)
	}

	if result.Status.IsTerminal() {
		return response.OK(c, result)
	}
	return response.Accepted(c, result)
}

// Scenes handles POST /api/generate/scenes
func (h *GenerateHandler) Scenes(c *fiber.Ctx) error {
	var req model.GenerateScenesRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.generation.GenerateAll(c.UserContext(), &req)
	if err != nil {
		return generationError(c, err)
	}

	return response.Accepted(c, result)
}

// Voice handles POST /api/generate/voice
func (h *GenerateHandler) Voice(c *fiber.Ctx) error {
	var req model.GenerateVoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.media.GenerateVoice(c.UserContext(), &req)
	if err != nil {
		return response.Failure(c, err)
	}

	return response.OK(c, result)
}

// Script handles POST /api/generate/script
func (h *GenerateHandler) Script(c *fiber.Ctx) error {
	var req model.GenerateScriptRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.scenes.GenerateScript(c.UserContext(), req.Topic)
	if err != nil {
		return response.Failure(c, err)
	}

	return response.OK(c, result)
}

// Thumbnail handles POST /api/generate/thumbnail
func (h *GenerateHandler) Thumbnail(c *fiber.Ctx) error {
	var req model.GenerateThumbnailRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.media.GenerateThumbnail(c.UserContext(), &req)
	if err != nil {
		return response.Failure(c, err)
	}

	return response.OK(c, result)
}

func generationError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrUnknownObserver) {
		return response.ValidationError(c, err.Error(), nil)
	}
	return response.Failure(c, err)
}
