package domain

import "sync"

// RuntimeConfig tracks which AI capabilities are available at runtime.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	SessionBackend   string // "redis"
	KnowledgeBackend string // "postgres"

	// Dynamic capability flags (updated when AI services change)
	embeddingAvailable  bool
	completionAvailable bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(sessionBackend, knowledgeBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		SessionBackend:   sessionBackend,
		KnowledgeBackend: knowledgeBackend,
	}
}

// EmbeddingAvailable returns whether the embedding service is available
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// CompletionAvailable returns whether the completion service is available
func (c *RuntimeConfig) CompletionAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completionAvailable
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetCompletionAvailable updates the completion availability flag
func (c *RuntimeConfig) SetCompletionAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completionAvailable = available
}

// CanAnswer returns true if both collaborators needed for /search are present
func (c *RuntimeConfig) CanAnswer() bool {
	return c.EmbeddingAvailable() && c.CompletionAvailable()
}
