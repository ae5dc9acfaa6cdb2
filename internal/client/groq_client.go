package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clipdeck/api/internal/config"
	"github.com/clipdeck/api/internal/logging"
	"github.com/clipdeck/api/internal/retry"
)

// ErrEmptyCompletion is returned when the model answers with no choices
var ErrEmptyCompletion = errors.New("no choices in completion response")

// Completer produces a single chat completion
type Completer interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
}

// GroqClient talks to the Groq OpenAI-compatible chat API
type GroqClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *slog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewGroqClient creates a new Groq API client
func NewGroqClient(cfg *config.GroqConfig, logger *slog.Logger) *GroqClient {
	if logger == nil {
		logger = logging.Discard()
	}
	return &GroqClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		logger:     logging.WithComponent(logger, "groq_client"),
	}
}

// ChatCompletion sends a system+user prompt pair and returns the first answer
func (c *GroqClient) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	bodyBytes, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
		MaxTokens:   2048,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("completion failed", "status", resp.StatusCode)
		return "", &retry.APIError{
			StatusCode: resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Message:    errorMessage(respBody),
			Body:       string(respBody),
		}
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	c.logger.Debug("completion done",
		"model", c.model,
		"tokens", chat.Usage.TotalTokens,
		"finish_reason", chat.Choices[0].FinishReason,
	)
	return chat.Choices[0].Message.Content, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *GroqClient) IsConfigured() bool {
	return c.apiKey != ""
}
