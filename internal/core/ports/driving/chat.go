package driving

import (
	"context"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// ChatService manages persisted chats
type ChatService interface {
	// Resolve returns the chat bound to chatID, minting an id if empty.
	// An absent chat is returned unpersisted. A type mismatch is domain.ErrChatTypeMismatch.
	Resolve(ctx context.Context, chatID string, chatType domain.ChatType, userID string) (*domain.Chat, error)

	// AppendTurn serializes and commits one turn to the chat
	AppendTurn(ctx context.Context, chat *domain.Chat, turn *domain.Turn) (*domain.Chat, error)

	// GetHistory returns the chat with its ordered turns.
	// chatType may be empty to skip the type check.
	GetHistory(ctx context.Context, chatID string, chatType domain.ChatType) (*domain.Chat, error)

	// List returns chats passing filter, most recent first
	List(ctx context.Context, filter domain.ChatFilter) ([]domain.ChatSummary, error)

	// AttachDocuments binds documents to a chat, creating a documentqna chat if absent
	AttachDocuments(ctx context.Context, chatID, userID string, documentIDs []string) (*domain.Chat, error)

	// Delete removes one chat. chatType may be empty to skip the type check.
	Delete(ctx context.Context, chatID string, chatType domain.ChatType) (*domain.DeleteResult, error)

	// DeleteAll removes every chat
	DeleteAll(ctx context.Context) (*domain.BulkDeleteResult, error)
}
