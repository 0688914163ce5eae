package driving

import (
	"context"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// ConversationService answers questions within a chat
type ConversationService interface {
	// Ask resolves or creates the chat, retrieves evidence, generates an answer
	// and persists the turn
	Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error)
}
