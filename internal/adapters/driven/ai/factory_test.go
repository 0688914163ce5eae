package ai

import (
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

func TestNewFactory(t *testing.T) {
	factory := NewFactory(nil)
	if factory == nil {
		t.Fatal("expected non-nil factory")
	}
}

func TestFactory_CreateEmbeddingService_NilSettings(t *testing.T) {
	factory := NewFactory(nil)

	svc, err := factory.CreateEmbeddingService(nil)
	if err != nil {
		t.Errorf("expected no error for nil settings, got %v", err)
	}
	if svc != nil {
		t.Error("expected nil service for nil settings")
	}
}

func TestFactory_CreateEmbeddingService_NotConfigured(t *testing.T) {
	factory := NewFactory(nil)

	settings := &domain.EmbeddingSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "text-embedding-3-small",
	}

	svc, err := factory.CreateEmbeddingService(settings)
	if err != nil {
		t.Errorf("expected no error for unconfigured settings, got %v", err)
	}
	if svc != nil {
		t.Error("expected nil service without an API key")
	}
}

func TestFactory_CreateEmbeddingService_OpenAI(t *testing.T) {
	factory := NewFactory(nil)

	settings := &domain.EmbeddingSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "text-embedding-3-small",
		APIKey:   "sk-test",
	}

	svc, err := factory.CreateEmbeddingService(settings)
	if err != nil {
		t.Fatalf("expected no error for OpenAI, got %v", err)
	}
	if svc == nil || svc.Model() != "text-embedding-3-small" {
		t.Error("expected OpenAI embedding service")
	}
}

func TestFactory_CreateEmbeddingService_Ollama(t *testing.T) {
	factory := NewFactory(nil)

	settings := &domain.EmbeddingSettings{
		Provider:   domain.AIProviderOllama,
		Model:      "nomic-embed-text",
		BaseURL:    "http://localhost:11434/v1",
		Dimensions: 768,
	}

	svc, err := factory.CreateEmbeddingService(settings)
	if err != nil {
		t.Fatalf("expected no error for Ollama, got %v", err)
	}
	if svc.Dimensions() != 768 {
		t.Errorf("expected 768 dimensions, got %d", svc.Dimensions())
	}
}

func TestFactory_CreateEmbeddingService_InvalidProvider(t *testing.T) {
	factory := NewFactory(nil)

	settings := &domain.EmbeddingSettings{
		Provider: domain.AIProvider("voyage"),
		APIKey:   "key",
	}

	_, err := factory.CreateEmbeddingService(settings)
	if !errors.Is(err, domain.ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}

func TestFactory_CreateCompletionService_NilSettings(t *testing.T) {
	factory := NewFactory(nil)

	svc, err := factory.CreateCompletionService(nil)
	if err != nil || svc != nil {
		t.Errorf("expected nil, nil for nil settings, got %v, %v", svc, err)
	}
}

func TestFactory_CreateCompletionService_OpenAI(t *testing.T) {
	factory := NewFactory(nil)

	settings := &domain.CompletionSettings{
		Provider: domain.AIProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "sk-test",
	}

	svc, err := factory.CreateCompletionService(settings)
	if err != nil {
		t.Fatalf("expected no error for OpenAI, got %v", err)
	}
	if svc.Model() != "gpt-4o-mini" {
		t.Errorf("expected gpt-4o-mini, got %s", svc.Model())
	}
}

func TestFactory_CreateCompletionService_Ollama(t *testing.T) {
	factory := NewFactory(nil)

	settings := &domain.CompletionSettings{
		Provider: domain.AIProviderOllama,
		Model:    "llama3.1",
	}

	svc, err := factory.CreateCompletionService(settings)
	if err != nil {
		t.Fatalf("expected no error for Ollama, got %v", err)
	}
	if svc == nil {
		t.Error("expected non-nil service for Ollama")
	}
}

func TestFactory_CreateCompletionService_InvalidProvider(t *testing.T) {
	factory := NewFactory(nil)

	settings := &domain.CompletionSettings{
		Provider: domain.AIProvider("anthropic"),
		APIKey:   "key",
	}

	_, err := factory.CreateCompletionService(settings)
	if !errors.Is(err, domain.ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}
