package driven

import (
	"context"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// DocumentStore handles uploaded document and chunk persistence (PostgreSQL)
type DocumentStore interface {
	// Save registers a document together with its embedded chunks.
	// Re-saving an existing document replaces its chunks.
	Save(ctx context.Context, doc *domain.UploadedDocument, chunks []*domain.DocumentChunk) error

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.UploadedDocument, error)

	// GetBatch retrieves the documents that exist among ids
	GetBatch(ctx context.Context, ids []string) ([]*domain.UploadedDocument, error)

	// SearchChunks returns the chunks of documentIDs most similar to embedding
	SearchChunks(ctx context.Context, documentIDs []string, embedding []float32, limit int) ([]*domain.ScoredChunk, error)

	// Attach binds documents to a chat
	Attach(ctx context.Context, chatID string, documentIDs []string) error

	// DetachChat unbinds every document attached to chatID and returns how many changed.
	// Chunks are kept so the documents remain usable ephemerally.
	DetachChat(ctx context.Context, chatID string) (int, error)

	// DetachAll unbinds every attached document and returns how many changed
	DetachAll(ctx context.Context) (int, error)

	// Delete removes a document and its chunks
	Delete(ctx context.Context, id string) error
}
