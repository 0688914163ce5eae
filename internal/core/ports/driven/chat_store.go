package driven

import (
	"context"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// ChatStore persists chat metadata, turn history and the recency index.
// Every mutation updates all three structures as one atomic unit.
// Callers serialize mutations of the same chat with a DistributedLock.
type ChatStore interface {
	// Get returns chat metadata without history.
	// Returns domain.ErrNotFound if the chat has no metadata.
	Get(ctx context.Context, chatID string) (*domain.Chat, error)

	// GetHistory returns the ordered turns of a chat, oldest first
	GetHistory(ctx context.Context, chatID string) ([]*domain.Turn, error)

	// AppendTurn appends turn to the history and writes chat metadata and its
	// recency marker in the same transaction. The stored title is never replaced.
	AppendTurn(ctx context.Context, chat *domain.Chat, turn *domain.Turn) (*domain.Chat, error)

	// SaveMeta writes chat metadata and its recency marker without touching history
	SaveMeta(ctx context.Context, chat *domain.Chat) error

	// List returns chats passing filter, most recently active first
	List(ctx context.Context, filter domain.ChatFilter) ([]domain.ChatSummary, error)

	// Delete removes metadata, history and recency marker together.
	// Deleting an absent chat returns Deleted=false and no error.
	Delete(ctx context.Context, chatID string) (*domain.DeleteResult, error)

	// DeleteAll removes every chat. The recency index is removed last.
	// Returns domain.ErrPartialDelete with the counts achieved on partial failure.
	DeleteAll(ctx context.Context) (*domain.BulkDeleteResult, error)

	// Ping checks if the session backend is healthy
	Ping(ctx context.Context) error
}
