package driven

import (
	"context"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// KnowledgeStore runs similarity queries over the authored knowledge banks.
// The banks are written by an external authoring pipeline and are read-only here.
type KnowledgeStore interface {
	// Search returns up to limit candidates from source, most similar first.
	// Score is cosine similarity in [-1, 1]. Zero matches is not an error.
	Search(ctx context.Context, source domain.KnowledgeSource, embedding []float32, limit int) ([]*domain.Evidence, error)

	// ListInsights returns every insight, newest first
	ListInsights(ctx context.Context) ([]*domain.InsightItem, error)

	// Ping checks if the knowledge backend is healthy
	Ping(ctx context.Context) error
}
