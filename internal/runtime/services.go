package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Services holds references to dynamically configurable services.
// AI services (Embedding, Completion) can be swapped without a restart.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	// Dynamic services (can be nil)
	embeddingService  driven.EmbeddingService
	completionService driven.CompletionService
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// CompletionService returns the current completion service (may be nil)
func (s *Services) CompletionService() driven.CompletionService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completionService
}

// RequireEmbedding returns the embedding service or an upstream error if none is configured
func (s *Services) RequireEmbedding() (driven.EmbeddingService, error) {
	svc := s.EmbeddingService()
	if svc == nil {
		return nil, fmt.Errorf("%w: embedding service not configured", domain.ErrUpstream)
	}
	return svc, nil
}

// RequireCompletion returns the completion service or an upstream error if none is configured
func (s *Services) RequireCompletion() (driven.CompletionService, error) {
	svc := s.CompletionService()
	if svc == nil {
		return nil, fmt.Errorf("%w: completion service not configured", domain.ErrUpstream)
	}
	return svc, nil
}

// SetEmbeddingService updates the embedding service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetCompletionService updates the completion service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetCompletionService(svc driven.CompletionService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completionService != nil {
		_ = s.completionService.Close()
	}

	s.completionService = svc
	s.config.SetCompletionAvailable(svc != nil)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.completionService != nil {
		_ = s.completionService.Close()
		s.completionService = nil
	}

	s.config.SetEmbeddingAvailable(false)
	s.config.SetCompletionAvailable(false)

	return nil
}

// RegisterEmbedding health-checks svc and registers it.
// An unhealthy service is still registered and the health error is returned;
// requests fail as upstream errors until the provider answers.
func (s *Services) RegisterEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	err := svc.HealthCheck(ctx)
	s.SetEmbeddingService(svc)
	if err != nil {
		return fmt.Errorf("embedding %s health check: %w", svc.Model(), err)
	}
	return nil
}

// RegisterCompletion pings svc and registers it, with the same contract as RegisterEmbedding.
func (s *Services) RegisterCompletion(ctx context.Context, svc driven.CompletionService) error {
	if svc == nil {
		s.SetCompletionService(nil)
		return nil
	}

	err := svc.Ping(ctx)
	s.SetCompletionService(svc)
	if err != nil {
		return fmt.Errorf("completion %s health check: %w", svc.Model(), err)
	}
	return nil
}
