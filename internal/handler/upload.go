package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipdeck/api/internal/service"
	"github.com/clipdeck/api/pkg/response"
)

const (
	maxUploadSize    = 50 * 1024 * 1024 // 50MB
	maxSignedURLTTL  = 7 * 24 * time.Hour
	defaultSignedTTL = time.Hour
)

var validVoiceTypes = map[string]bool{
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/mp4":   true,
	"audio/x-m4a": true,
	"audio/aac":   true,
	"audio/x-aac": true,
	"audio/webm":  true,
}

type UploadHandler struct {
	service   *service.UploadService
	validator *validator.Validate
}

func NewUploadHandler(svc *service.UploadService, v *validator.Validate) *UploadHandler {
	return &UploadHandler{
		service:   svc,
		validator: v,
	}
}

// Voice handles POST /api/upload/voice
// Multipart form: projectId, voiceName (optional) and file.
func (h *UploadHandler) Voice(c *fiber.Ctx) error {
	projectID := c.FormValue("projectId")
	if projectID == "" {
		return response.ValidationError(c, "projectId is required", nil)
	}
	voiceName := c.FormValue("voiceName")

	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get("Content-Type")
	if !validVoiceTypes[contentType] {
		return response.ValidationError(c, "Invalid file type. Supported: WAV, M4A, MP3, AAC, WEBM", map[string]interface{}{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.UploadVoice(c.UserContext(), projectID, voiceName, file.Filename, f, file.Size, contentType)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// DeleteVoice handles DELETE /api/upload/voice?key=...
func (h *UploadHandler) DeleteVoice(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" {
		return response.ValidationError(c, "key is required", nil)
	}

	if err := h.service.DeleteVoice(c.UserContext(), key); err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.NoContent(c)
}

// SignedURL handles GET /api/upload/signed-url?key=...&expiry=1h
func (h *UploadHandler) SignedURL(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" {
		return response.ValidationError(c, "key is required", nil)
	}

	expiry := defaultSignedTTL
	if raw := c.Query("expiry"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxSignedURLTTL {
			return response.ValidationError(c, "expiry must be a duration up to 168h", nil)
		}
		expiry = d
	}

	url, err := h.service.SignedURL(c.UserContext(), key, expiry)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, fiber.Map{
		"url":       url,
		"expiresAt": time.Now().Add(expiry),
	})
}
