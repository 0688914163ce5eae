package services

import (
	"context"
	"log/slog"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driving"
)

// Ensure insightService implements InsightService
var _ driving.InsightService = (*insightService)(nil)

// insightService lists the read-only insight bank
type insightService struct {
	store  driven.KnowledgeStore
	retry  RetryConfig
	logger *slog.Logger
}

// NewInsightService creates a new InsightService
func NewInsightService(store driven.KnowledgeStore, retry RetryConfig, logger *slog.Logger) driving.InsightService {
	if logger == nil {
		logger = slog.Default()
	}
	return &insightService{store: store, retry: retry, logger: logger}
}

// List returns insight summaries, newest first
func (s *insightService) List(ctx context.Context) ([]domain.InsightSummary, error) {
	items, err := retryUpstream(ctx, s.retry, s.logger, "list insights", func() ([]*domain.InsightItem, error) {
		return s.store.ListInsights(ctx)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.InsightSummary, 0, len(items))
	for _, item := range items {
		out = append(out, item.Summarize())
	}
	return out, nil
}
