package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Ensure MockDocumentStore implements DocumentStore
var _ driven.DocumentStore = (*MockDocumentStore)(nil)

// MockDocumentStore is an in-memory DocumentStore for testing
type MockDocumentStore struct {
	mu     sync.RWMutex
	docs   map[string]*domain.UploadedDocument
	chunks map[string][]*domain.DocumentChunk

	// DetachErr fails every DetachChat and DetachAll when set
	DetachErr error
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		docs:   make(map[string]*domain.UploadedDocument),
		chunks: make(map[string][]*domain.DocumentChunk),
	}
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *domain.UploadedDocument, chunks []*domain.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *doc
	m.docs[doc.ID] = &d
	m.chunks[doc.ID] = chunks
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.UploadedDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	d := *doc
	return &d, nil
}

func (m *MockDocumentStore) GetBatch(ctx context.Context, ids []string) ([]*domain.UploadedDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.UploadedDocument
	for _, id := range ids {
		if doc, ok := m.docs[id]; ok {
			d := *doc
			out = append(out, &d)
		}
	}
	return out, nil
}

func (m *MockDocumentStore) SearchChunks(ctx context.Context, documentIDs []string, embedding []float32, limit int) ([]*domain.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ScoredChunk
	for _, id := range documentIDs {
		doc, ok := m.docs[id]
		if !ok {
			continue
		}
		for _, c := range m.chunks[id] {
			out = append(out, &domain.ScoredChunk{
				Chunk:    c,
				Filename: doc.Filename,
				Score:    Cosine(embedding, c.Embedding),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockDocumentStore) Attach(ctx context.Context, chatID string, documentIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range documentIDs {
		if doc, ok := m.docs[id]; ok {
			doc.ChatID = chatID
		}
	}
	return nil
}

func (m *MockDocumentStore) DetachChat(ctx context.Context, chatID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DetachErr != nil {
		return 0, m.DetachErr
	}
	n := 0
	for _, doc := range m.docs {
		if doc.ChatID == chatID {
			doc.ChatID = ""
			n++
		}
	}
	return n, nil
}

func (m *MockDocumentStore) DetachAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DetachErr != nil {
		return 0, m.DetachErr
	}
	n := 0
	for _, doc := range m.docs {
		if doc.ChatID != "" {
			doc.ChatID = ""
			n++
		}
	}
	return n, nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return nil
}

// ChunkCount returns the stored chunk count for a document
func (m *MockDocumentStore) ChunkCount(id string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[id])
}

// ChunkContents returns the stored chunk texts for a document in position order
func (m *MockDocumentStore) ChunkContents(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.chunks[id]))
	for _, c := range m.chunks[id] {
		out = append(out, c.Content)
	}
	return out
}
