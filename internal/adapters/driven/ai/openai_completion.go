package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Ensure OpenAICompletion implements CompletionService
var _ driven.CompletionService = (*OpenAICompletion)(nil)

const (
	defaultCompletionModel     = "gpt-4o-mini"
	defaultCompletionMaxTokens = 800
)

// OpenAICompletion implements CompletionService using the chat completions API
// of OpenAI or an OpenAI-compatible server such as Ollama
type OpenAICompletion struct {
	client      *openai.Client
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	model       string
	baseURL     string
	temperature float32
	maxTokens   int
}

// NewOpenAICompletion creates a completion service from settings
func NewOpenAICompletion(settings domain.CompletionSettings, logger *slog.Logger) (driven.CompletionService, error) {
	apiKey := settings.APIKey
	baseURL := settings.BaseURL
	model := settings.Model

	switch settings.Provider {
	case domain.AIProviderOpenAI, "":
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required")
		}
		if baseURL == "" {
			baseURL = defaultOpenAIBaseURL
		}
		if model == "" {
			model = defaultCompletionModel
		}
	case domain.AIProviderOllama:
		// Ollama accepts any bearer token
		if apiKey == "" {
			apiKey = "ollama"
		}
		if baseURL == "" {
			baseURL = defaultOllamaBaseURL
		}
		if model == "" {
			return nil, fmt.Errorf("ollama completion model is required")
		}
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}

	maxTokens := settings.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultCompletionMaxTokens
	}

	httpClient := &http.Client{Timeout: 120 * time.Second}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = httpClient

	return &OpenAICompletion{
		client:      openai.NewClientWithConfig(cfg),
		httpClient:  httpClient,
		breaker:     newBreaker("completion:"+model, DefaultBreakerConfig(), logger),
		model:       model,
		baseURL:     baseURL,
		temperature: settings.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Complete runs one chat completion and returns the first choice's content
func (c *OpenAICompletion) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("%w: completion request has no messages", domain.ErrInvalidInput)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := guarded(c.breaker, func() (openai.ChatCompletionResponse, error) {
		return c.client.CreateChatCompletion(ctx, chatReq)
	})
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Model returns the model name being used
func (c *OpenAICompletion) Model() string {
	return c.model
}

// Ping verifies the provider is reachable by listing its models
func (c *OpenAICompletion) Ping(ctx context.Context) error {
	_, err := guarded(c.breaker, func() (openai.ModelsList, error) {
		return c.client.ListModels(ctx)
	})
	if err != nil {
		return fmt.Errorf("completion ping failed: %w", err)
	}
	return nil
}

// Close releases resources held by the completion service
func (c *OpenAICompletion) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
