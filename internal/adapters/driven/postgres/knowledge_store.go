package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.KnowledgeStore = (*KnowledgeStore)(nil)

// KnowledgeStore implements driven.KnowledgeStore over the knowledge_items and
// insights tables using pgvector cosine distance
type KnowledgeStore struct {
	db *DB
}

// NewKnowledgeStore creates a new KnowledgeStore
func NewKnowledgeStore(db *DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

// Search returns up to limit items from source ordered by cosine similarity
func (s *KnowledgeStore) Search(ctx context.Context, source domain.KnowledgeSource, embedding []float32, limit int) ([]*domain.Evidence, error) {
	if limit <= 0 {
		return []*domain.Evidence{}, nil
	}
	vec := pgvector.NewVector(embedding)

	switch source {
	case domain.KnowledgeSourceKnowledge:
		return s.searchKnowledge(ctx, vec, limit)
	case domain.KnowledgeSourceInsight:
		return s.searchInsights(ctx, vec, limit)
	default:
		return nil, fmt.Errorf("%w: unknown knowledge source %q", domain.ErrInvalidInput, source)
	}
}

// Equal distances are broken by id so the candidate cutoff is deterministic.
const (
	searchKnowledgeQuery = `
		SELECT id, question, detailed_answer, follow_up_questions, tags, embedding <=> $1 AS distance
		FROM knowledge_items
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id ASC
		LIMIT $2
	`

	searchInsightsQuery = `
		SELECT id, title, summary, detailed_answer, tags, updated_at, embedding <=> $1 AS distance
		FROM insights
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1, id ASC
		LIMIT $2
	`
)

func (s *KnowledgeStore) searchKnowledge(ctx context.Context, vec pgvector.Vector, limit int) ([]*domain.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, searchKnowledgeQuery, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	defer rows.Close()

	results := []*domain.Evidence{}
	for rows.Next() {
		var (
			item     domain.KnowledgeItem
			tagsJSON []byte
			distance float64
		)
		err := rows.Scan(
			&item.ID,
			&item.Question,
			&item.DetailedAnswer,
			pq.Array(&item.FollowUpQuestions),
			&tagsJSON,
			&distance,
		)
		if err != nil {
			return nil, fmt.Errorf("scan knowledge item: %w", err)
		}
		if item.Tags, err = decodeTags(tagsJSON); err != nil {
			return nil, fmt.Errorf("knowledge item %s: %w", item.ID, err)
		}
		results = append(results, domain.FromKnowledgeItem(&item, similarity(distance)))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func (s *KnowledgeStore) searchInsights(ctx context.Context, vec pgvector.Vector, limit int) ([]*domain.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, searchInsightsQuery, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("search insights: %w", err)
	}
	defer rows.Close()

	results := []*domain.Evidence{}
	for rows.Next() {
		var distance float64
		item, err := scanInsight(rows, &distance)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.FromInsightItem(item, similarity(distance)))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// ListInsights returns every insight, newest first
func (s *KnowledgeStore) ListInsights(ctx context.Context) ([]*domain.InsightItem, error) {
	query := `
		SELECT id, title, summary, detailed_answer, tags, updated_at
		FROM insights
		ORDER BY updated_at DESC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}
	defer rows.Close()

	items := []*domain.InsightItem{}
	for rows.Next() {
		item, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanInsight scans one insight row; extra receives trailing computed columns
func scanInsight(row rowScanner, extra ...any) (*domain.InsightItem, error) {
	var (
		item     domain.InsightItem
		tagsJSON []byte
	)
	dest := append([]any{
		&item.ID,
		&item.Title,
		&item.Summary,
		&item.DetailedAnswer,
		&tagsJSON,
		&item.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan insight: %w", err)
	}

	tags, err := decodeTags(tagsJSON)
	if err != nil {
		return nil, fmt.Errorf("insight %s: %w", item.ID, err)
	}
	item.Tags = tags
	return &item, nil
}

// Ping checks if the database is reachable
func (s *KnowledgeStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
