package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Ensure OpenAIEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOllamaBaseURL = "http://localhost:11434/v1"
)

// OpenAIEmbedding implements EmbeddingService against any OpenAI-compatible
// /embeddings endpoint (OpenAI itself or Ollama)
type OpenAIEmbedding struct {
	client     *openai.Client
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	model      string
	baseURL    string
	dimensions int
	// requestDimensions is sent to the API; zero keeps the model's native size
	requestDimensions int
}

// Model dimensions for known embedding models
var embeddingModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
}

// NewOpenAIEmbedding creates a new OpenAI embedding service.
// dimensions > 0 asks the model for shortened vectors.
func NewOpenAIEmbedding(apiKey, model, baseURL string, dimensions int) (driven.EmbeddingService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return newEmbedding(apiKey, model, baseURL, dimensions, dimensions, nil), nil
}

// NewOllamaEmbedding creates an embedding service backed by a local Ollama server
func NewOllamaEmbedding(baseURL, model string, dimensions int) (driven.EmbeddingService, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	// Ollama ignores the dimensions parameter, so it only informs Dimensions()
	return newEmbedding("ollama", model, baseURL, dimensions, 0, nil), nil
}

func newEmbedding(apiKey, model, baseURL string, dimensions, requestDimensions int, logger *slog.Logger) *OpenAIEmbedding {
	if dimensions <= 0 {
		var ok bool
		dimensions, ok = embeddingModelDimensions[model]
		if !ok {
			// Default to 1536 for unknown models
			dimensions = 1536
		}
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = httpClient

	return &OpenAIEmbedding{
		client:            openai.NewClientWithConfig(cfg),
		httpClient:        httpClient,
		breaker:           newBreaker("embedding:"+model, DefaultBreakerConfig(), logger),
		model:             model,
		baseURL:           baseURL,
		dimensions:        dimensions,
		requestDimensions: requestDimensions,
	}
}

// Embed generates embeddings for multiple texts, in input order
func (e *OpenAIEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     e.requestDimensions,
	}

	resp, err := guarded(e.breaker, func() (openai.EmbeddingResponse, error) {
		return e.client.CreateEmbeddings(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	// Sort by index to ensure order matches input
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	for i, emb := range embeddings {
		if len(emb) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding for a search query
func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return embeddings[0], nil
}

// Dimensions returns the embedding dimension size
func (e *OpenAIEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OpenAIEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the embedding service is available
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	// Make a small embedding request to verify connectivity
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *OpenAIEmbedding) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}
