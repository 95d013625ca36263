package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
	"github.com/bryanwahyu/apr-reconciler/internal/infra/ai/prompt"
)

const (
	DefaultBaseURL     = "https://api.mistral.ai/v1"
	DefaultModel       = "mistral-large-latest"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 4000

	// EmptyContent is returned when the model answers with a blank message.
	EmptyContent = "Analysis completed but no content returned."
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float32 // nil = DefaultTemperature, 0 is honoured
	MaxTokens   int
	Timeout     time.Duration
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	*openai.Client
	cfg         Config
	temperature float32
	logger      *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	temperature := float32(DefaultTemperature)
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{Client: openai.NewClientWithConfig(oc), cfg: cfg, temperature: temperature, logger: logger}
}

// wireTemperature: go-openai drops a zero temperature (omitempty), so an
// explicit 0 goes out as the smallest positive float instead.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// Analyze sends exactly one chat completion request.
func (c *Client) Analyze(ctx context.Context, req review.AnalysisRequest) (string, error) {
	start := time.Now()
	resp, err := c.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.InstructionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(req.UserContent)},
		},
		Temperature: wireTemperature(c.temperature),
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		c.logger.Error("chat.request.failed", "model", c.cfg.Model, "error", err)
		return "", normalize(err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Error("chat.request.empty", "model", c.cfg.Model)
		return "", review.ErrNoChoices
	}

	content := resp.Choices[0].Message.Content
	c.logger.Info("chat.request.ok",
		"model", c.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"content_len", len(content),
	)
	if content == "" {
		return EmptyContent, nil
	}
	return content, nil
}

// normalize maps go-openai errors onto review.ProviderError.
func normalize(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &review.ProviderError{HTTPStatus: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &review.ProviderError{HTTPStatus: reqErr.HTTPStatusCode, Message: msg}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("analysis request: %w", err)
	}
	return &review.ProviderError{Message: err.Error()}
}
