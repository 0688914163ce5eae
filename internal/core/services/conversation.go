package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-assist/internal/runtime"
)

// Ensure conversationService implements ConversationService
var _ driving.ConversationService = (*conversationService)(nil)

// ConversationConfig holds configuration for the conversation service
type ConversationConfig struct {
	Options domain.ConversationOptions
	Retry   RetryConfig
	Logger  *slog.Logger
}

// DefaultConversationConfig returns default configuration
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		Options: domain.DefaultConversationOptions(),
		Retry:   DefaultRetryConfig(),
		Logger:  slog.Default(),
	}
}

// conversationService drives one question through retrieval, generation and persistence
type conversationService struct {
	chats     driving.ChatService
	retriever *Retriever
	documents driven.DocumentStore
	services  *runtime.Services
	cfg       ConversationConfig
}

// NewConversationService creates a new ConversationService.
// AI services are read from the runtime registry on every request.
func NewConversationService(
	chats driving.ChatService,
	knowledge driven.KnowledgeStore,
	documents driven.DocumentStore,
	services *runtime.Services,
	cfg ConversationConfig,
) (driving.ConversationService, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &conversationService{
		chats:     chats,
		retriever: NewRetriever(knowledge, cfg.Retry, cfg.Logger),
		documents: documents,
		services:  services,
		cfg:       cfg,
	}, nil
}

// Ask answers req.Question within its chat and commits the turn
func (s *conversationService) Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	start := time.Now()
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	opts := s.cfg.Options

	chat, err := s.chats.Resolve(ctx, req.ChatID, req.ChatType, req.UserID)
	if err != nil {
		return nil, err
	}

	embedder, err := s.services.RequireEmbedding()
	if err != nil {
		return nil, err
	}
	vec, err := retryUpstream(ctx, s.cfg.Retry, s.cfg.Logger, "embed question", func() ([]float32, error) {
		return embedder.EmbedQuery(ctx, req.Question)
	})
	if err != nil {
		return nil, err
	}

	var evidence []*domain.Evidence
	if source, ok := chat.Type.KnowledgeSource(); ok {
		evidence, err = s.retriever.Retrieve(ctx, vec, source, opts.Retrieval)
		if err != nil {
			return nil, err
		}
	}

	documentIDs := unionIDs(chat.DocumentIDs, req.DocumentIDs)
	docEvidence, err := s.documentEvidence(ctx, documentIDs, vec)
	if err != nil {
		return nil, err
	}
	evidence = rankEvidence(append(evidence, docEvidence...), -1, 0)

	history, err := s.priorTurns(ctx, chat)
	if err != nil {
		return nil, err
	}

	completion := s.services.CompletionService()
	var (
		reply    completionReply
		included []*domain.Evidence
	)
	if len(evidence) == 0 {
		reply = completionReply{Answer: noEvidenceAnswer(chat.Type)}
	} else {
		if completion == nil {
			return nil, fmt.Errorf("%w: completion service not configured", domain.ErrUpstream)
		}
		assembled := AssembleContext(history, evidence, opts.Context)
		if len(assembled.Evidence) == 0 {
			s.cfg.Logger.Warn("context budget left no room for evidence",
				"chat_id", chat.ID,
				"max_chars", opts.Context.MaxChars)
		}
		included = assembled.Evidence

		msgs := buildAnswerMessages(chat.Type, req.Question, assembled, opts.MaxFollowUps)
		raw, err := retryUpstream(ctx, s.cfg.Retry, s.cfg.Logger, "complete answer", func() (string, error) {
			return completion.Complete(ctx, driven.CompletionRequest{Messages: msgs, JSON: true})
		})
		if err != nil {
			return nil, err
		}
		reply = parseReply(raw)
	}

	followUps := []string{}
	tags := []domain.Tag{}
	var contributing []*domain.Evidence
	if reply.HasAnswer {
		contributing = citedEvidence(included, reply.Sources)
		followUps = dedupeFollowUps(reply.FollowUps, opts.MaxFollowUps)
		if len(followUps) == 0 {
			followUps = authoredFollowUps(contributing, opts.MaxFollowUps)
		}
		tags = distinctTags(contributing)
	}

	if !chat.HasTitle() {
		chat.Title = generateTitle(ctx, completion, req.Question)
	}

	turn := &domain.Turn{
		Question:          req.Question,
		Answer:            reply.Answer,
		FollowUpQuestions: followUps,
		Tags:              tags,
	}
	if reply.HasAnswer && len(documentIDs) > 0 {
		turn.DocumentIDs = documentIDs
		chat.AddDocumentIDs(req.DocumentIDs...)
	}

	saved, err := s.chats.AppendTurn(ctx, chat, turn)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Question:          req.Question,
		Answer:            reply.Answer,
		FollowUpQuestions: followUps,
		ChatID:            saved.ID,
		ChatType:          saved.Type,
		Title:             saved.Title,
		Tags:              tags,
		HasAnswer:         reply.HasAnswer,
	}
	bankIDs, docIDs := splitEvidenceIDs(contributing)
	answer.SetDetails(bankIDs, docIDs)

	s.cfg.Logger.Info("answered question",
		"chat_id", saved.ID,
		"chat_type", saved.Type,
		"evidence", len(evidence),
		"has_answer", reply.HasAnswer,
		"duration", time.Since(start))
	return answer, nil
}

// documentEvidence searches the chunks of the given documents
func (s *conversationService) documentEvidence(ctx context.Context, documentIDs []string, vec []float32) ([]*domain.Evidence, error) {
	if len(documentIDs) == 0 || s.documents == nil {
		return nil, nil
	}
	chunks, err := retryUpstream(ctx, s.cfg.Retry, s.cfg.Logger, "document search", func() ([]*domain.ScoredChunk, error) {
		return s.documents.SearchChunks(ctx, documentIDs, vec, s.cfg.Options.DocumentChunkTopK)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Evidence, 0, len(chunks))
	for _, c := range chunks {
		e := domain.FromDocumentChunk(c.Chunk, c.Filename, c.Score)
		out = append(out, e)
	}
	return out, nil
}

// priorTurns loads the stored history of a persisted chat
func (s *conversationService) priorTurns(ctx context.Context, chat *domain.Chat) ([]*domain.Turn, error) {
	if !chat.IsPersisted() {
		return nil, nil
	}
	loaded, err := s.chats.GetHistory(ctx, chat.ID, chat.Type)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return loaded.Turns, nil
}

// noEvidenceAnswer is the deterministic reply when retrieval found nothing
func noEvidenceAnswer(ct domain.ChatType) string {
	if ct == domain.ChatTypeDocumentQnA {
		return FallbackNoDocuments
	}
	return FallbackNoKnowledge
}

// citedEvidence returns the evidence named in sources, or all of it when
// the reply cited nothing recognizable
func citedEvidence(included []*domain.Evidence, sources []string) []*domain.Evidence {
	if len(sources) == 0 {
		return included
	}
	cited := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		cited[src] = struct{}{}
	}
	var out []*domain.Evidence
	for _, e := range included {
		_, byLabel := cited[e.Label()]
		_, byID := cited[e.ID]
		if byLabel || byID {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return included
	}
	return out
}

// authoredFollowUps returns the follow-ups of the best evidence that has any
func authoredFollowUps(evidence []*domain.Evidence, max int) []string {
	for _, e := range evidence {
		if len(e.FollowUpQuestions) > 0 {
			return dedupeFollowUps(e.FollowUpQuestions, max)
		}
	}
	return []string{}
}

// distinctTags collects tags in evidence order, first occurrence of a name wins
func distinctTags(evidence []*domain.Evidence) []domain.Tag {
	out := []domain.Tag{}
	seen := make(map[string]struct{})
	for _, e := range evidence {
		for _, t := range e.Tags {
			if t.Name == "" {
				continue
			}
			if _, ok := seen[t.Name]; ok {
				continue
			}
			seen[t.Name] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// splitEvidenceIDs separates knowledge-bank ids from document ids
func splitEvidenceIDs(evidence []*domain.Evidence) (bankIDs, documentIDs []string) {
	seenDocs := make(map[string]struct{})
	for _, e := range evidence {
		if e.Kind == domain.EvidenceDocument {
			if _, ok := seenDocs[e.DocumentID]; !ok {
				seenDocs[e.DocumentID] = struct{}{}
				documentIDs = append(documentIDs, e.DocumentID)
			}
			continue
		}
		bankIDs = append(bankIDs, e.ID)
	}
	return bankIDs, documentIDs
}

// unionIDs merges id lists preserving first-seen order
func unionIDs(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
