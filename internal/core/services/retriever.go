package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Retriever ranks knowledge-bank candidates for a query embedding
type Retriever struct {
	store  driven.KnowledgeStore
	retry  RetryConfig
	logger *slog.Logger
}

// NewRetriever creates a Retriever over store
func NewRetriever(store driven.KnowledgeStore, retry RetryConfig, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, retry: retry, logger: logger}
}

// Retrieve returns at most opts.TopK candidates scoring at least opts.MinScore,
// best first. Equal scores are ordered by ascending id. No matches is an empty result.
func (r *Retriever) Retrieve(ctx context.Context, embedding []float32, source domain.KnowledgeSource, opts domain.RetrievalOptions) ([]*domain.Evidence, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: unknown knowledge source %q", domain.ErrInvalidInput, source)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", domain.ErrUpstream)
	}

	candidates, err := retryUpstream(ctx, r.retry, r.logger, "knowledge search", func() ([]*domain.Evidence, error) {
		return r.store.Search(ctx, source, embedding, opts.CandidatePool)
	})
	if err != nil {
		return nil, err
	}

	return rankEvidence(candidates, opts.MinScore, opts.TopK), nil
}

// rankEvidence drops candidates below minScore, orders by score desc then id asc,
// and keeps the first topK.
func rankEvidence(candidates []*domain.Evidence, minScore float64, topK int) []*domain.Evidence {
	kept := make([]*domain.Evidence, 0, len(candidates))
	for _, c := range candidates {
		if c != nil && c.Score >= minScore {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].ID < kept[j].ID
	})
	if topK > 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}
