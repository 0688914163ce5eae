package driving

import (
	"context"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// InsightService exposes the read-only insight bank
type InsightService interface {
	// List returns insight summaries, newest first
	List(ctx context.Context) ([]domain.InsightSummary, error)
}
