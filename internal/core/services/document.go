package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-assist/internal/runtime"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// DocumentConfig holds configuration for the document service
type DocumentConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MaxBytes     int64
	Options      domain.ConversationOptions
	Retry        RetryConfig
	Logger       *slog.Logger

	// Normalisers cleans uploaded text by MIME type before chunking (optional)
	Normalisers driven.NormaliserRegistry
}

// DefaultDocumentConfig returns default configuration
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MaxBytes:     10 << 20,
		Options:      domain.DefaultConversationOptions(),
		Retry:        DefaultRetryConfig(),
		Logger:       slog.Default(),
	}
}

// documentService registers uploads and answers one-off document questions.
// Document Q&A never reads or writes the chat store; history comes from the client.
type documentService struct {
	store    driven.DocumentStore
	chats    driving.ChatService
	services *runtime.Services
	cfg      DocumentConfig
	now      func() time.Time
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(store driven.DocumentStore, chats driving.ChatService, services *runtime.Services, cfg DocumentConfig) driving.DocumentService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultDocumentConfig().ChunkSize
	}
	return &documentService{
		store:    store,
		chats:    chats,
		services: services,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// DocumentID derives the stable id of an upload from its bytes
func DocumentID(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:16])
}

// Upload chunks, embeds and registers a text document
func (s *documentService) Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	mime, ok := domain.UploadMimeType(req.Filename)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, req.Filename)
	}
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}
	if s.cfg.MaxBytes > 0 && int64(len(req.Content)) > s.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, s.cfg.MaxBytes)
	}
	if !utf8.Valid(req.Content) {
		return nil, fmt.Errorf("%w: file is not valid UTF-8 text", domain.ErrInvalidInput)
	}

	id := DocumentID(req.Content)
	chatID := strings.TrimSpace(req.ChatID)
	result := &domain.UploadResult{DocumentID: id, ChatID: chatID}

	existing, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		result.Message = "Document already uploaded"
		s.cfg.Logger.Info("reusing uploaded document", "document_id", id, "filename", existing.Filename)
	case errors.Is(err, domain.ErrNotFound):
		if err := s.register(ctx, id, mime, req); err != nil {
			return nil, err
		}
		result.Message = "Document uploaded"
	default:
		return nil, fmt.Errorf("%w: load document: %v", domain.ErrUpstream, err)
	}

	if chatID != "" {
		if _, err := s.chats.AttachDocuments(ctx, chatID, req.UserID, []string{id}); err != nil {
			return nil, err
		}
		if err := s.store.Attach(ctx, chatID, []string{id}); err != nil {
			return nil, fmt.Errorf("%w: attach document: %v", domain.ErrUpstream, err)
		}
		result.Message += " and attached to chat"
	}
	return result, nil
}

// register splits, embeds and stores a new document
func (s *documentService) register(ctx context.Context, id, mime string, req domain.UploadRequest) error {
	text := string(req.Content)
	if s.cfg.Normalisers != nil {
		if n := s.cfg.Normalisers.Get(mime); n != nil {
			text = n.Normalise(text)
		}
	}

	parts := SplitText(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(parts) == 0 {
		return fmt.Errorf("%w: file has no text content", domain.ErrInvalidInput)
	}

	embedder, err := s.services.RequireEmbedding()
	if err != nil {
		return err
	}
	vectors, err := retryUpstream(ctx, s.cfg.Retry, s.cfg.Logger, "embed document", func() ([][]float32, error) {
		return embedder.Embed(ctx, parts)
	})
	if err != nil {
		return err
	}
	if len(vectors) != len(parts) {
		return fmt.Errorf("%w: embedded %d of %d chunks", domain.ErrUpstream, len(vectors), len(parts))
	}

	chunks := make([]*domain.DocumentChunk, len(parts))
	for i, text := range parts {
		chunks[i] = &domain.DocumentChunk{
			ID:         fmt.Sprintf("%s-%d", id, i),
			DocumentID: id,
			Position:   i,
			Content:    text,
			Embedding:  vectors[i],
		}
	}
	doc := &domain.UploadedDocument{
		ID:         id,
		Filename:   req.Filename,
		MimeType:   mime,
		SizeBytes:  int64(len(req.Content)),
		ChunkCount: len(chunks),
		CreatedAt:  s.now(),
	}
	if err := s.store.Save(ctx, doc, chunks); err != nil {
		return fmt.Errorf("%w: save document: %v", domain.ErrUpstream, err)
	}

	s.cfg.Logger.Info("registered document",
		"document_id", id,
		"filename", req.Filename,
		"chunks", len(chunks))
	return nil
}

// Ask answers a question from the given documents without touching chat history
func (s *documentService) Ask(ctx context.Context, req domain.DocumentAskRequest) (*domain.DocumentAnswer, error) {
	start := time.Now()
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	ids := unionIDs(req.DocumentIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: document_ids is required", domain.ErrInvalidInput)
	}

	docs, err := s.store.GetBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: load documents: %v", domain.ErrUpstream, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: none of the requested documents exist", domain.ErrNotFound)
	}
	found := make([]string, len(docs))
	for i, d := range docs {
		found[i] = d.ID
	}

	embedder, err := s.services.RequireEmbedding()
	if err != nil {
		return nil, err
	}
	vec, err := retryUpstream(ctx, s.cfg.Retry, s.cfg.Logger, "embed question", func() ([]float32, error) {
		return embedder.EmbedQuery(ctx, question)
	})
	if err != nil {
		return nil, err
	}

	chunks, err := retryUpstream(ctx, s.cfg.Retry, s.cfg.Logger, "document search", func() ([]*domain.ScoredChunk, error) {
		return s.store.SearchChunks(ctx, found, vec, s.cfg.Options.DocumentChunkTopK)
	})
	if err != nil {
		return nil, err
	}
	evidence := make([]*domain.Evidence, 0, len(chunks))
	for _, c := range chunks {
		evidence = append(evidence, domain.FromDocumentChunk(c.Chunk, c.Filename, c.Score))
	}
	evidence = rankEvidence(evidence, 0, s.cfg.Options.DocumentChunkTopK)

	answer := &domain.DocumentAnswer{
		Question:          question,
		Answer:            FallbackNoDocuments,
		FollowUpQuestions: []string{},
	}
	if len(evidence) > 0 {
		completion, err := s.services.RequireCompletion()
		if err != nil {
			return nil, err
		}
		assembled := AssembleContext(priorToTurns(req.PriorHistory), evidence, s.cfg.Options.Context)
		msgs := buildAnswerMessages(domain.ChatTypeDocumentQnA, question, assembled, s.cfg.Options.MaxFollowUps)
		raw, err := retryUpstream(ctx, s.cfg.Retry, s.cfg.Logger, "complete document answer", func() (string, error) {
			return completion.Complete(ctx, driven.CompletionRequest{Messages: msgs, JSON: true})
		})
		if err != nil {
			return nil, err
		}
		reply := parseReply(raw)
		answer.Answer = reply.Answer
		if reply.HasAnswer {
			answer.FollowUpQuestions = dedupeFollowUps(reply.FollowUps, s.cfg.Options.MaxFollowUps)
		}
	}

	answer.ProcessingTime = math.Round(time.Since(start).Seconds()*100) / 100
	return answer, nil
}

// Delete removes a document and its chunks
func (s *documentService) Delete(ctx context.Context, documentID string) error {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return fmt.Errorf("%w: document_id is required", domain.ErrInvalidInput)
	}
	if err := s.store.Delete(ctx, documentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: delete document: %v", domain.ErrUpstream, err)
	}
	s.cfg.Logger.Info("deleted document", "document_id", documentID)
	return nil
}

func priorToTurns(prior []domain.PriorTurn) []*domain.Turn {
	out := make([]*domain.Turn, 0, len(prior))
	for _, p := range prior {
		if strings.TrimSpace(p.Question) == "" {
			continue
		}
		out = append(out, &domain.Turn{Question: p.Question, Answer: p.Answer})
	}
	return out
}
