package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/service"
	"github.com/clipdeck/api/pkg/response"
)

type SceneHandler struct {
	service   *service.SceneService
	validator *validator.Validate
}

func NewSceneHandler(svc *service.SceneService, v *validator.Validate) *SceneHandler {
	return &SceneHandler{
		service:   svc,
		validator: v,
	}
}

// Parse handles POST /api/scenes/parse
func (h *SceneHandler) Parse(c *fiber.Ctx) error {
	var req model.ParseScriptRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	return response.OK(c, h.service.Parse(req.Script))
}

// Edit handles POST /api/scenes/edit
func (h *SceneHandler) Edit(c *fiber.Ctx) error {
	var req model.SceneEditRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Edit(c.UserContext(), &req)
	if err != nil {
		return response.AIError(c, err.Error())
	}

	return response.OK(c, result)
}
