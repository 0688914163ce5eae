package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL.
// Chunk embeddings live in the same row as the chunk text (pgvector).
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save registers a document and replaces its chunks in one transaction.
// An existing chat binding is kept when doc carries none.
func (s *DocumentStore) Save(ctx context.Context, doc *domain.UploadedDocument, chunks []*domain.DocumentChunk) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		docQuery := `
			INSERT INTO uploaded_documents (id, chat_id, filename, mime_type, size_bytes, chunk_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				chat_id = COALESCE(EXCLUDED.chat_id, uploaded_documents.chat_id),
				filename = EXCLUDED.filename,
				mime_type = EXCLUDED.mime_type,
				size_bytes = EXCLUDED.size_bytes,
				chunk_count = EXCLUDED.chunk_count
		`

		var chatID *string
		if doc.ChatID != "" {
			chatID = &doc.ChatID
		}
		_, err := tx.ExecContext(ctx, docQuery,
			doc.ID,
			NullString(chatID),
			doc.Filename,
			doc.MimeType,
			doc.SizeBytes,
			len(chunks),
			doc.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("save document: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, doc.ID); err != nil {
			return fmt.Errorf("clear chunks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO document_chunks (id, document_id, position, content, embedding)
			VALUES ($1, $2, $3, $4, $5)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			_, err = stmt.ExecContext(ctx,
				chunk.ID,
				doc.ID,
				chunk.Position,
				chunk.Content,
				pgvector.NewVector(chunk.Embedding),
			)
			if err != nil {
				return fmt.Errorf("save chunk %s: %w", chunk.ID, err)
			}
		}

		return nil
	})
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.UploadedDocument, error) {
	query := `
		SELECT id, chat_id, filename, mime_type, size_bytes, chunk_count, created_at
		FROM uploaded_documents
		WHERE id = $1
	`

	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetBatch retrieves the documents that exist among ids, in request order
func (s *DocumentStore) GetBatch(ctx context.Context, ids []string) ([]*domain.UploadedDocument, error) {
	if len(ids) == 0 {
		return []*domain.UploadedDocument{}, nil
	}

	query := `
		SELECT id, chat_id, filename, mime_type, size_bytes, chunk_count, created_at
		FROM uploaded_documents
		WHERE id = ANY($1)
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get documents: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.UploadedDocument, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		byID[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orderByIDs(ids, byID), nil
}

// orderByIDs returns the documents found in byID following ids, skipping duplicates
func orderByIDs(ids []string, byID map[string]*domain.UploadedDocument) []*domain.UploadedDocument {
	docs := make([]*domain.UploadedDocument, 0, len(byID))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		doc, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		docs = append(docs, doc)
	}
	return docs
}

// SearchChunks returns the chunks of documentIDs closest to embedding
func (s *DocumentStore) SearchChunks(ctx context.Context, documentIDs []string, embedding []float32, limit int) ([]*domain.ScoredChunk, error) {
	if len(documentIDs) == 0 || limit <= 0 {
		return []*domain.ScoredChunk{}, nil
	}

	query := `
		SELECT c.id, c.document_id, c.position, c.content, d.filename, c.embedding <=> $2 AS distance
		FROM document_chunks c
		JOIN uploaded_documents d ON d.id = c.document_id
		WHERE c.document_id = ANY($1) AND c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $2, c.document_id, c.position
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(documentIDs), pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	results := []*domain.ScoredChunk{}
	for rows.Next() {
		var (
			chunk    domain.DocumentChunk
			filename string
			distance float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position, &chunk.Content, &filename, &distance); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		results = append(results, &domain.ScoredChunk{
			Chunk:    &chunk,
			Filename: filename,
			Score:    similarity(distance),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// Attach binds documents to a chat
func (s *DocumentStore) Attach(ctx context.Context, chatID string, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	query := `UPDATE uploaded_documents SET chat_id = $1 WHERE id = ANY($2)`
	if _, err := s.db.ExecContext(ctx, query, chatID, pq.Array(documentIDs)); err != nil {
		return fmt.Errorf("attach documents: %w", err)
	}
	return nil
}

// DetachChat unbinds every document attached to chatID
func (s *DocumentStore) DetachChat(ctx context.Context, chatID string) (int, error) {
	query := `UPDATE uploaded_documents SET chat_id = NULL WHERE chat_id = $1`
	result, err := s.db.ExecContext(ctx, query, chatID)
	if err != nil {
		return 0, fmt.Errorf("detach documents: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

// DetachAll unbinds every attached document
func (s *DocumentStore) DetachAll(ctx context.Context) (int, error) {
	query := `UPDATE uploaded_documents SET chat_id = NULL WHERE chat_id IS NOT NULL`
	result, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("detach all documents: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

// Delete removes a document; its chunks cascade
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM uploaded_documents WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func scanDocument(row rowScanner) (*domain.UploadedDocument, error) {
	var (
		doc    domain.UploadedDocument
		chatID sql.NullString
	)
	err := row.Scan(
		&doc.ID,
		&chatID,
		&doc.Filename,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.ChunkCount,
		&doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p := StringPtr(chatID); p != nil {
		doc.ChatID = *p
	}
	return &doc, nil
}
