package driven

import (
	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// AIServiceFactory creates AI services based on configuration
type AIServiceFactory interface {
	// CreateEmbeddingService creates an embedding service from settings
	// Returns nil, nil if settings are not configured
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)

	// CreateCompletionService creates a completion service from settings
	// Returns nil, nil if settings are not configured
	CreateCompletionService(settings *domain.CompletionSettings) (CompletionService, error)
}
