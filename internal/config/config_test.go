package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 0.75, cfg.Retrieval.MinScore)
	assert.Equal(t, "admin", cfg.Auth.DefaultUserID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://a.example.org, https://b.example.org")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("DB_CONN_MAX_LIFETIME_SEC", "120")
	t.Setenv("OPENAI_API_KEY", "sk-shared")
	t.Setenv("COMPLETION_PROVIDER", "ollama")
	t.Setenv("COMPLETION_MODEL", "llama3.1")
	t.Setenv("COMPLETION_TEMPERATURE", "0.5")
	t.Setenv("RETRIEVAL_TOP_K", "5")
	t.Setenv("RETRIEVAL_MIN_SCORE", "0.6")
	t.Setenv("LOCK_TTL", "45s")
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, 2*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "sk-shared", cfg.AI.Embedding.APIKey)
	assert.Equal(t, "ollama", cfg.AI.Completion.Provider)
	assert.Equal(t, "llama3.1", cfg.AI.Completion.Model)
	assert.InDelta(t, 0.5, cfg.AI.Completion.Temperature, 1e-6)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.6, cfg.Retrieval.MinScore)
	assert.Equal(t, 45*time.Second, cfg.Lock.TTL)
	assert.True(t, cfg.Auth.Required)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
retrieval:
  top_k: 4
  candidate_pool: 50
  min_score: 0.8
context:
  max_chars: 4000
upload:
  chunk_size: 500
  chunk_overlap: 50
retry:
  initial_interval: 100ms
ai:
  embedding:
    provider: ollama
    model: nomic-embed-text
    base_url: http://localhost:11434/v1
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RETRIEVAL_TOP_K", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Retrieval.TopK, "environment wins over the file")
	assert.Equal(t, 50, cfg.Retrieval.CandidatePool)
	assert.Equal(t, 0.8, cfg.Retrieval.MinScore)
	assert.Equal(t, 4000, cfg.Context.MaxChars)
	assert.Equal(t, 6, cfg.Context.MaxTurns, "unset keys keep defaults")
	assert.Equal(t, 500, cfg.Upload.ChunkSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, "ollama", cfg.AI.Embedding.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.Embedding.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("LOCK_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCK_TTL")
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown provider", func(c *Config) { c.AI.Completion.Provider = "acme" }},
		{"pool below top_k", func(c *Config) { c.Retrieval.CandidatePool = 1 }},
		{"min score above one", func(c *Config) { c.Retrieval.MinScore = 1.2 }},
		{"overlap not below chunk size", func(c *Config) { c.Upload.ChunkOverlap = c.Upload.ChunkSize }},
		{"zero retries", func(c *Config) { c.Retry.MaxTries = 0 }},
		{"required auth without secret", func(c *Config) { c.Auth.Required = true }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}

func TestConversationOptions(t *testing.T) {
	cfg := Default()
	cfg.Answer.MaxFollowUps = 2

	opts := cfg.ConversationOptions()

	assert.Equal(t, cfg.Retrieval, opts.Retrieval)
	assert.Equal(t, cfg.Context, opts.Context)
	assert.Equal(t, 2, opts.MaxFollowUps)
	assert.NoError(t, opts.Validate())
}

func TestAISettings(t *testing.T) {
	cfg := Default()
	cfg.AI.Embedding.APIKey = "sk-test"

	settings := cfg.AISettings()

	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.True(t, settings.Embedding.IsConfigured())
	assert.False(t, settings.Completion.IsConfigured())
	assert.NoError(t, settings.Validate())
}
