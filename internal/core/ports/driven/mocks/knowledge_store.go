package mocks

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Ensure MockKnowledgeStore implements KnowledgeStore
var _ driven.KnowledgeStore = (*MockKnowledgeStore)(nil)

// MockKnowledgeStore is an in-memory cosine-similarity knowledge bank
type MockKnowledgeStore struct {
	mu        sync.RWMutex
	knowledge []*domain.KnowledgeItem
	insights  []*domain.InsightItem
	insightV  map[string][]float32
	err       error
}

// NewMockKnowledgeStore creates a new MockKnowledgeStore
func NewMockKnowledgeStore() *MockKnowledgeStore {
	return &MockKnowledgeStore{insightV: make(map[string][]float32)}
}

// AddKnowledge registers an authored knowledge item
func (m *MockKnowledgeStore) AddKnowledge(item *domain.KnowledgeItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.knowledge = append(m.knowledge, item)
}

// AddInsight registers an insight with its embedding
func (m *MockKnowledgeStore) AddInsight(item *domain.InsightItem, embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insights = append(m.insights, item)
	m.insightV[item.ID] = embedding
}

// SetError makes every call fail with err
func (m *MockKnowledgeStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockKnowledgeStore) Search(ctx context.Context, source domain.KnowledgeSource, embedding []float32, limit int) ([]*domain.Evidence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	var out []*domain.Evidence
	switch source {
	case domain.KnowledgeSourceKnowledge:
		for _, item := range m.knowledge {
			out = append(out, domain.FromKnowledgeItem(item, Cosine(embedding, item.Embedding)))
		}
	case domain.KnowledgeSourceInsight:
		for _, item := range m.insights {
			out = append(out, domain.FromInsightItem(item, Cosine(embedding, m.insightV[item.ID])))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockKnowledgeStore) ListInsights(ctx context.Context) ([]*domain.InsightItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*domain.InsightItem, len(m.insights))
	copy(out, m.insights)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MockKnowledgeStore) Ping(ctx context.Context) error {
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 for mismatched or zero vectors
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
