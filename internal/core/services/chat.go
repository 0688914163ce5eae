package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driving"
)

// Ensure chatService implements ChatService
var _ driving.ChatService = (*chatService)(nil)

// ChatServiceConfig holds configuration for the chat service
type ChatServiceConfig struct {
	// LockTTL bounds how long one mutation may hold a chat's lock
	LockTTL time.Duration

	// LockRetryInterval is the wait between lock acquisition attempts
	LockRetryInterval time.Duration

	// LockWait bounds the total wait for a lock when ctx has no deadline
	LockWait time.Duration

	Logger *slog.Logger
}

// DefaultChatServiceConfig returns default configuration
func DefaultChatServiceConfig() ChatServiceConfig {
	return ChatServiceConfig{
		LockTTL:           30 * time.Second,
		LockRetryInterval: 25 * time.Millisecond,
		LockWait:          10 * time.Second,
		Logger:            slog.Default(),
	}
}

// chatService implements driving.ChatService over a ChatStore.
// Mutations of one chat are serialized with a DistributedLock named after the chat id.
type chatService struct {
	store     driven.ChatStore
	lock      driven.DistributedLock
	documents driven.DocumentStore
	cfg       ChatServiceConfig
	now       func() time.Time
}

// NewChatService creates a new ChatService.
// documents may be nil when uploads are disabled.
func NewChatService(store driven.ChatStore, lock driven.DistributedLock, documents driven.DocumentStore, cfg ChatServiceConfig) driving.ChatService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultChatServiceConfig().LockTTL
	}
	if cfg.LockRetryInterval <= 0 {
		cfg.LockRetryInterval = DefaultChatServiceConfig().LockRetryInterval
	}
	return &chatService{
		store:     store,
		lock:      lock,
		documents: documents,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the chat bound to chatID, minting a fresh id when empty
func (s *chatService) Resolve(ctx context.Context, chatID string, chatType domain.ChatType, userID string) (*domain.Chat, error) {
	if !chatType.IsValid() {
		return nil, fmt.Errorf("%w: unknown chat_type %q", domain.ErrInvalidInput, chatType)
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return domain.NewChat(uuid.NewString(), chatType, userID), nil
	}

	chat, err := s.store.Get(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewChat(chatID, chatType, userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load chat: %v", domain.ErrUpstream, err)
	}
	if chat.Type != chatType {
		return nil, fmt.Errorf("%w: chat %s is a %s chat, not %s", domain.ErrChatTypeMismatch, chatID, chat.Type, chatType)
	}
	return chat, nil
}

// AppendTurn commits turn under the chat's lock.
// A failed append is reported and never retried, so no turn is written twice.
func (s *chatService) AppendTurn(ctx context.Context, chat *domain.Chat, turn *domain.Turn) (*domain.Chat, error) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}

	var saved *domain.Chat
	err := s.withChatLock(ctx, chat.ID, func(ctx context.Context) error {
		// Another writer may have created the chat with a different type since Resolve
		current, err := s.store.Get(ctx, chat.ID)
		switch {
		case err == nil:
			if current.Type != chat.Type {
				return fmt.Errorf("%w: chat %s is a %s chat", domain.ErrChatTypeMismatch, chat.ID, current.Type)
			}
			mergeStored(chat, current)
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("%w: load chat: %v", domain.ErrUpstream, err)
		}

		saved, err = s.store.AppendTurn(ctx, chat, turn)
		if err != nil {
			return fmt.Errorf("%w: append turn: %v", domain.ErrUpstream, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// mergeStored carries the stored title, creation time and documents into chat
func mergeStored(chat, stored *domain.Chat) {
	if stored.Title != "" {
		chat.Title = stored.Title
	}
	if !stored.CreatedAt.IsZero() {
		chat.CreatedAt = stored.CreatedAt
	}
	ids := chat.DocumentIDs
	chat.DocumentIDs = append([]string{}, stored.DocumentIDs...)
	chat.AddDocumentIDs(ids...)
}

// GetHistory returns the chat with its turns, oldest first
func (s *chatService) GetHistory(ctx context.Context, chatID string, chatType domain.ChatType) (*domain.Chat, error) {
	chat, err := s.store.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load chat: %v", domain.ErrUpstream, err)
	}
	if chatType != "" && chat.Type != chatType {
		return nil, fmt.Errorf("%w: chat %s is a %s chat, not %s", domain.ErrChatTypeMismatch, chatID, chat.Type, chatType)
	}

	turns, err := s.store.GetHistory(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %v", domain.ErrUpstream, err)
	}
	chat.Turns = turns
	chat.TurnCount = len(turns)
	return chat, nil
}

// List returns chats passing filter, most recent first
func (s *chatService) List(ctx context.Context, filter domain.ChatFilter) ([]domain.ChatSummary, error) {
	chats, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: list chats: %v", domain.ErrUpstream, err)
	}
	if chats == nil {
		chats = []domain.ChatSummary{}
	}
	return chats, nil
}

// AttachDocuments adds document ids to a chat's metadata, creating a
// documentqna chat when none exists yet
func (s *chatService) AttachDocuments(ctx context.Context, chatID, userID string, documentIDs []string) (*domain.Chat, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, fmt.Errorf("%w: chat_id is required", domain.ErrInvalidInput)
	}

	var chat *domain.Chat
	err := s.withChatLock(ctx, chatID, func(ctx context.Context) error {
		var err error
		chat, err = s.store.Get(ctx, chatID)
		if errors.Is(err, domain.ErrNotFound) {
			chat = domain.NewChat(chatID, domain.ChatTypeDocumentQnA, userID)
			chat.CreatedAt = s.now()
		} else if err != nil {
			return fmt.Errorf("%w: load chat: %v", domain.ErrUpstream, err)
		}

		if !chat.AddDocumentIDs(documentIDs...) && chat.IsPersisted() {
			return nil
		}
		chat.LastActivity = s.now()
		if err := s.store.SaveMeta(ctx, chat); err != nil {
			return fmt.Errorf("%w: save chat: %v", domain.ErrUpstream, err)
		}
		chat.MarkPersisted()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Delete removes one chat and detaches its documents
func (s *chatService) Delete(ctx context.Context, chatID string, chatType domain.ChatType) (*domain.DeleteResult, error) {
	var result *domain.DeleteResult
	err := s.withChatLock(ctx, chatID, func(ctx context.Context) error {
		if chatType != "" {
			chat, err := s.store.Get(ctx, chatID)
			switch {
			case err == nil && chat.Type != chatType:
				return fmt.Errorf("%w: chat %s is a %s chat, not %s", domain.ErrChatTypeMismatch, chatID, chat.Type, chatType)
			case err != nil && !errors.Is(err, domain.ErrNotFound):
				return fmt.Errorf("%w: load chat: %v", domain.ErrUpstream, err)
			}
		}

		var err error
		result, err = s.store.Delete(ctx, chatID)
		if err != nil {
			return fmt.Errorf("%w: delete chat: %v", domain.ErrUpstream, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Deleted {
		s.detachDocuments(ctx, chatID)
	}
	return result, nil
}

// DeleteAll removes every chat
func (s *chatService) DeleteAll(ctx context.Context) (*domain.BulkDeleteResult, error) {
	result, err := s.store.DeleteAll(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrPartialDelete) {
			s.cfg.Logger.Warn("bulk chat delete incomplete",
				"deleted_lists", result.DeletedLists,
				"deleted_meta", result.DeletedMeta,
				"error", err)
			return result, err
		}
		return result, fmt.Errorf("%w: delete chats: %v", domain.ErrUpstream, err)
	}
	s.cfg.Logger.Info("deleted all chats",
		"deleted_lists", result.DeletedLists,
		"deleted_meta", result.DeletedMeta)
	s.detachAllDocuments(ctx)
	return result, nil
}

// detachAllDocuments unbinds every attached document after a bulk delete. Failures are logged only.
func (s *chatService) detachAllDocuments(ctx context.Context) {
	if s.documents == nil {
		return
	}
	n, err := s.documents.DetachAll(ctx)
	if err != nil {
		s.cfg.Logger.Warn("failed to detach documents after deleting all chats", "error", err)
		return
	}
	if n > 0 {
		s.cfg.Logger.Info("detached documents after deleting all chats", "documents", n)
	}
}

// detachDocuments unbinds a deleted chat's documents. Failures are logged only.
func (s *chatService) detachDocuments(ctx context.Context, chatID string) {
	if s.documents == nil {
		return
	}
	n, err := s.documents.DetachChat(ctx, chatID)
	if err != nil {
		s.cfg.Logger.Warn("failed to detach documents from deleted chat", "chat_id", chatID, "error", err)
		return
	}
	if n > 0 {
		s.cfg.Logger.Info("detached documents from deleted chat", "chat_id", chatID, "documents", n)
	}
}

// withChatLock runs fn while holding the chat's lock.
// It polls until the lock is free or the wait expires.
func (s *chatService) withChatLock(ctx context.Context, chatID string, fn func(ctx context.Context) error) error {
	name := "chat:" + chatID

	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok && s.cfg.LockWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.cfg.LockWait)
		defer cancel()
	}

	var token string
	for {
		t, acquired, err := s.lock.Acquire(waitCtx, name, s.cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("%w: acquire chat lock: %v", domain.ErrUpstream, err)
		}
		if acquired {
			token = t
			break
		}
		select {
		case <-waitCtx.Done():
			return fmt.Errorf("%w: chat %s", domain.ErrLockTimeout, chatID)
		case <-time.After(s.cfg.LockRetryInterval):
		}
	}

	defer func() {
		// Release even if ctx was cancelled mid-mutation
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx, name, token); err != nil {
			s.cfg.Logger.Warn("failed to release chat lock", "chat_id", chatID, "error", err)
		}
	}()

	stop := s.keepLockAlive(ctx, chatID, name, token)
	defer stop()

	return fn(ctx)
}

// keepLockAlive extends the lock every half TTL until stop is called,
// so a slow mutation keeps exclusive ownership of the chat.
func (s *chatService) keepLockAlive(ctx context.Context, chatID, name, token string) (stop func()) {
	interval := s.cfg.LockTTL / 2
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				extendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), interval)
				err := s.lock.Extend(extendCtx, name, token, s.cfg.LockTTL)
				cancel()
				if err != nil {
					s.cfg.Logger.Warn("failed to extend chat lock", "chat_id", chatID, "error", err)
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}
