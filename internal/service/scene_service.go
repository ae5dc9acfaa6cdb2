package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clipdeck/api/internal/client"
	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/model"
	"github.com/clipdeck/api/internal/scene"
)

// ScriptWriter produces a script for a topic
type ScriptWriter interface {
	GenerateScript(ctx context.Context, topic string) (string, error)
}

// SceneService parses scripts into scenes and edits scenes with an LLM
type SceneService struct {
	completer client.Completer
	writer    ScriptWriter
	logger    *slog.Logger
}

// NewSceneService creates a scene service. A nil or unconfigured completer
// switches scene editing to a deterministic mock.
func NewSceneService(completer client.Completer, writer ScriptWriter, logger *slog.Logger) *SceneService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SceneService{
		completer: completer,
		writer:    writer,
		logger:    logging.WithComponent(logger, "scene_service"),
	}
}

// Parse splits a script into numbered scenes
func (s *SceneService) Parse(script string) *model.ParseScriptResponse {
	return &model.ParseScriptResponse{Scenes: scene.Parse(script)}
}

// GenerateScript asks the render backend for a script and parses it
func (s *SceneService) GenerateScript(ctx context.Context, topic string) (*model.ScriptResponse, error) {
	script, err := s.writer.GenerateScript(ctx, topic)
	if err != nil {
		return nil, err
	}
	return &model.ScriptResponse{Script: script, Scenes: scene.Parse(script)}, nil
}

// Edit rewrites a scene following a free-form user request. Fields the
// model leaves empty keep their current value.
func (s *SceneService) Edit(ctx context.Context, req *model.SceneEditRequest) (*model.SceneEditResponse, error) {
	if !s.aiConfigured() {
		return s.editMock(req), nil
	}

	response, err := s.completer.ChatCompletion(ctx, sceneEditSystemPrompt, buildSceneEditPrompt(req))
	if err != nil {
		s.logger.Warn("scene edit failed", "scene_id", req.Scene.ID, "error", err)
		return nil, fmt.Errorf("AI scene edit failed: %w", err)
	}

	var edited struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Prompt      string `json:"prompt"`
	}
	if err := json.Unmarshal([]byte(extractJSON(response)), &edited); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	out := req.Scene
	if edited.Title != "" {
		out.Title = edited.Title
	}
	if edited.Description != "" {
		out.Description = edited.Description
	}
	if edited.Prompt != "" {
		out.Prompt = edited.Prompt
	}
	return &model.SceneEditResponse{Scene: out}, nil
}

func (s *SceneService) aiConfigured() bool {
	if s.completer == nil {
		return false
	}
	if c, ok := s.completer.(interface{ IsConfigured() bool }); ok {
		return c.IsConfigured()
	}
	return true
}

const sceneEditSystemPrompt = `You edit scenes of a short video. A scene has a title, a description and an optional video generation prompt.
Apply the user's instructions and return ONLY a JSON object:
{"title": "...", "description": "...", "prompt": "..."}
Keep every field the user does not mention unchanged.`

func buildSceneEditPrompt(req *model.SceneEditRequest) string {
	prompt := req.Scene.Prompt
	if prompt == "" {
		prompt = "Not set"
	}
	return fmt.Sprintf(`Current scene:
Title: %s
Description: %s
Prompt: %s

User request: %s

Return the updated scene as JSON.`, req.Scene.Title, req.Scene.Description, prompt, req.UserRequest)
}

// extractJSON cuts the outermost object out of a response that may carry
// extra prose around it.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

func (s *SceneService) editMock(req *model.SceneEditRequest) *model.SceneEditResponse {
	out := req.Scene
	out.Prompt = strings.TrimSpace(scene.PromptFor(out) + ", " + req.UserRequest)
	return &model.SceneEditResponse{Scene: out}
}
