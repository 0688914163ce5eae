package domain

import (
	"errors"
	"testing"
)

func TestAIProvider_RequiresAPIKey(t *testing.T) {
	if !AIProviderOpenAI.RequiresAPIKey() {
		t.Error("expected openai to require an API key")
	}
	if AIProviderOllama.RequiresAPIKey() {
		t.Error("expected ollama to not require an API key")
	}
}

func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		provider AIProvider
		valid    bool
	}{
		{AIProviderOpenAI, true},
		{AIProviderOllama, true},
		{"", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			if got := tt.provider.IsValid(); got != tt.valid {
				t.Errorf("IsValid(%q) = %v, want %v", tt.provider, got, tt.valid)
			}
		})
	}
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		want     bool
	}{
		{"empty", EmbeddingSettings{}, false},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk-test"}, true},
		{"ollama without key", EmbeddingSettings{Provider: AIProviderOllama}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.settings.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompletionSettings_IsConfigured(t *testing.T) {
	s := CompletionSettings{Provider: AIProviderOpenAI}
	if s.IsConfigured() {
		t.Error("expected unconfigured without API key")
	}
	s.APIKey = "sk-test"
	if !s.IsConfigured() {
		t.Error("expected configured with API key")
	}
}

func TestAISettings_Validate(t *testing.T) {
	valid := AISettings{
		Embedding:  EmbeddingSettings{Provider: AIProviderOpenAI},
		Completion: CompletionSettings{Provider: AIProviderOllama},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	invalid := AISettings{Completion: CompletionSettings{Provider: "cohere"}}
	if err := invalid.Validate(); !errors.Is(err, ErrInvalidProvider) {
		t.Errorf("expected ErrInvalidProvider, got %v", err)
	}
}
