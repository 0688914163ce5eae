package driving

import (
	"context"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// DocumentService manages uploaded documents and ephemeral document Q&A
type DocumentService interface {
	// Upload chunks, embeds and registers a document, optionally attaching it to a chat
	Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error)

	// Ask answers a question from documents using only client-supplied history
	Ask(ctx context.Context, req domain.DocumentAskRequest) (*domain.DocumentAnswer, error)

	// Delete removes a document and its chunks
	Delete(ctx context.Context, documentID string) error
}
