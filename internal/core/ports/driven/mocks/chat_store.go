package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Ensure MockChatStore implements ChatStore
var _ driven.ChatStore = (*MockChatStore)(nil)

// MockChatStore is an in-memory ChatStore for testing
type MockChatStore struct {
	mu      sync.RWMutex
	meta    map[string]*domain.Chat
	history map[string][]*domain.Turn
	order   map[string]time.Time

	// AppendErr fails every AppendTurn when set
	AppendErr error
	// DeleteAllErr makes DeleteAll report a partial failure when set
	DeleteAllErr error
}

// NewMockChatStore creates a new MockChatStore
func NewMockChatStore() *MockChatStore {
	return &MockChatStore{
		meta:    make(map[string]*domain.Chat),
		history: make(map[string][]*domain.Turn),
		order:   make(map[string]time.Time),
	}
}

func (m *MockChatStore) Get(ctx context.Context, chatID string) (*domain.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chat, ok := m.meta[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneChat(chat, len(m.history[chatID])), nil
}

func (m *MockChatStore) GetHistory(ctx context.Context, chatID string) ([]*domain.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := m.history[chatID]
	out := make([]*domain.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (m *MockChatStore) AppendTurn(ctx context.Context, chat *domain.Chat, turn *domain.Turn) (*domain.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return nil, m.AppendErr
	}

	stored := cloneChat(chat, 0)
	if existing, ok := m.meta[chat.ID]; ok {
		if existing.Title != "" {
			stored.Title = existing.Title
		}
		stored.CreatedAt = existing.CreatedAt
		stored.AddDocumentIDs(existing.DocumentIDs...)
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = turn.Timestamp
	}
	stored.LastActivity = turn.Timestamp

	m.history[chat.ID] = append(m.history[chat.ID], turn)
	m.meta[chat.ID] = stored
	m.order[chat.ID] = turn.Timestamp
	return cloneChat(stored, len(m.history[chat.ID])), nil
}

func (m *MockChatStore) SaveMeta(ctx context.Context, chat *domain.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := cloneChat(chat, 0)
	if stored.LastActivity.IsZero() {
		stored.LastActivity = time.Now()
	}
	m.meta[chat.ID] = stored
	m.order[chat.ID] = stored.LastActivity
	return nil
}

func (m *MockChatStore) List(ctx context.Context, filter domain.ChatFilter) ([]domain.ChatSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.ChatSummary
	for id, ts := range m.order {
		chat, ok := m.meta[id]
		if !ok || !filter.Includes(chat.Type) {
			continue
		}
		summary := domain.ChatSummary{
			ChatID:       id,
			ChatType:     chat.Type,
			Title:        chat.Title,
			LastActivity: ts,
		}
		if turns := m.history[id]; len(turns) > 0 {
			summary.LastAnswer = turns[len(turns)-1].Answer
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (m *MockChatStore) Delete(ctx context.Context, chatID string) (*domain.DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &domain.DeleteResult{ChatID: chatID}
	if _, ok := m.meta[chatID]; ok {
		result.SegmentsDeleted++
	}
	if _, ok := m.history[chatID]; ok {
		result.SegmentsDeleted++
	}
	if _, ok := m.order[chatID]; ok {
		result.SegmentsDeleted++
	}
	delete(m.meta, chatID)
	delete(m.history, chatID)
	delete(m.order, chatID)
	result.Deleted = result.SegmentsDeleted > 0
	return result, nil
}

func (m *MockChatStore) DeleteAll(ctx context.Context) (*domain.BulkDeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &domain.BulkDeleteResult{
		DeletedLists: len(m.history),
		DeletedMeta:  len(m.meta),
	}
	if m.DeleteAllErr != nil {
		return result, m.DeleteAllErr
	}
	result.RemovedOrderIndex = len(m.order) > 0
	m.meta = make(map[string]*domain.Chat)
	m.history = make(map[string][]*domain.Turn)
	m.order = make(map[string]time.Time)
	return result, nil
}

func (m *MockChatStore) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored chats (for test assertions)
func (m *MockChatStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.meta)
}

func cloneChat(c *domain.Chat, turns int) *domain.Chat {
	out := *c
	out.DocumentIDs = append([]string{}, c.DocumentIDs...)
	out.Turns = nil
	out.TurnCount = turns
	out.MarkPersisted()
	return &out
}
