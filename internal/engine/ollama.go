// File: internal/engine/ollama.go
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/config"
)

const defaultOllamaEndpoint = "http://localhost:11434"

// OllamaClient implements schemas.EngineClient against a local Ollama server
// using the /api/chat endpoint. Like GeminiClient it is single-shot; retries
// and rate limiting belong to the Gateway.
type OllamaClient struct {
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
	cfg        config.EngineConfig
}

var _ schemas.EngineClient = (*OllamaClient)(nil)

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	TotalDuration   int64         `json:"total_duration"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// NewOllamaClient initializes the client. No API key is required; the
// endpoint defaults to the standard local Ollama address.
func NewOllamaClient(cfg config.EngineConfig, logger *zap.Logger) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model name is required")
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	return &OllamaClient{
		endpoint:   endpoint,
		model:      cfg.Model,
		cfg:        cfg,
		httpClient: &http.Client{},
		logger:     logger.Named("engine.ollama"),
	}, nil
}

// Generate sends a chat completion request and returns the assistant message.
func (c *OllamaClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	payload := ollamaChatRequest{
		Model: c.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Options.Temperature,
			NumPredict:  c.cfg.MaxTokens,
		},
	}
	if req.Options.MaxTokens > 0 {
		payload.Options.NumPredict = req.Options.MaxTokens
	}
	if req.Options.ForceJSONFormat {
		payload.Format = "json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response body: %v", ErrEngineUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Ollama returned error status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody))
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", fmt.Errorf("%w: ollama status %d", ErrEngineUnreachable, resp.StatusCode)
		}
		return "", fmt.Errorf("ollama error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if chat.Message.Content == "" {
		return "", fmt.Errorf("ollama returned an empty message")
	}

	c.logger.Debug("Generation complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", chat.PromptEvalCount),
		zap.Int("completion_tokens", chat.EvalCount),
	)
	return chat.Message.Content, nil
}

// Close releases client resources.
func (c *OllamaClient) Close() error { return nil }
