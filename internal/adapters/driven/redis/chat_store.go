package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ChatStore = (*ChatStore)(nil)

const (
	chatMetaPrefix    = "chat:meta:"
	chatHistoryPrefix = "chat:history:"
	chatOrderKey      = "chat:order"

	// scanBatch is the COUNT hint used when scanning keys for bulk deletion
	scanBatch = 200
)

// ChatStore implements driven.ChatStore using Redis.
//
// Layout:
//   - chat:meta:{id}     JSON chat metadata
//   - chat:history:{id}  list of JSON turns, oldest first
//   - chat:order         sorted set of "{type}:{id}" scored by last activity (unix ms)
type ChatStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewChatStore creates a new Redis-backed chat store.
func NewChatStore(client *redis.Client, logger *slog.Logger) *ChatStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatStore{
		client: client,
		logger: logger.With("component", "chat_store"),
	}
}

// chatMeta is the stored metadata record
type chatMeta struct {
	ChatID       string    `json:"chat_id"`
	ChatType     string    `json:"chat_type"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title,omitempty"`
	DocumentIDs  []string  `json:"document_ids"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

func metaKey(chatID string) string    { return chatMetaPrefix + chatID }
func historyKey(chatID string) string { return chatHistoryPrefix + chatID }

func orderMember(chatType domain.ChatType, chatID string) string {
	return string(chatType) + ":" + chatID
}

// parseOrderMember splits "{type}:{id}". Chat ids never contain the type prefix.
func parseOrderMember(member string) (domain.ChatType, string, bool) {
	t, id, ok := strings.Cut(member, ":")
	if !ok || id == "" {
		return "", "", false
	}
	ct := domain.ChatType(t)
	if !ct.IsValid() {
		return "", "", false
	}
	return ct, id, true
}

func toMeta(c *domain.Chat) *chatMeta {
	docs := c.DocumentIDs
	if docs == nil {
		docs = []string{}
	}
	return &chatMeta{
		ChatID:       c.ID,
		ChatType:     string(c.Type),
		UserID:       c.UserID,
		Title:        c.Title,
		DocumentIDs:  docs,
		CreatedAt:    c.CreatedAt,
		LastActivity: c.LastActivity,
	}
}

func (m *chatMeta) toChat(turnCount int) *domain.Chat {
	chat := &domain.Chat{
		ID:           m.ChatID,
		Type:         domain.ChatType(m.ChatType),
		UserID:       m.UserID,
		Title:        m.Title,
		DocumentIDs:  append([]string{}, m.DocumentIDs...),
		CreatedAt:    m.CreatedAt,
		LastActivity: m.LastActivity,
		TurnCount:    turnCount,
	}
	chat.MarkPersisted()
	return chat
}

// Get returns chat metadata with its turn count.
func (s *ChatStore) Get(ctx context.Context, chatID string) (*domain.Chat, error) {
	var (
		metaCmd *redis.StringCmd
		lenCmd  *redis.IntCmd
	)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		metaCmd = pipe.Get(ctx, metaKey(chatID))
		lenCmd = pipe.LLen(ctx, historyKey(chatID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get chat %s: %w", chatID, err)
	}

	meta, err := decodeMeta(metaCmd)
	if err != nil {
		return nil, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	if meta == nil {
		return nil, domain.ErrNotFound
	}
	return meta.toChat(int(lenCmd.Val())), nil
}

func decodeMeta(cmd *redis.StringCmd) (*chatMeta, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta chatMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal chat meta: %w", err)
	}
	return &meta, nil
}

// GetHistory returns the ordered turns of a chat. Malformed entries are skipped.
func (s *ChatStore) GetHistory(ctx context.Context, chatID string) ([]*domain.Turn, error) {
	raw, err := s.client.LRange(ctx, historyKey(chatID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", chatID, err)
	}

	turns := make([]*domain.Turn, 0, len(raw))
	for i, item := range raw {
		var turn domain.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			s.logger.Warn("skipping malformed turn", "chat_id", chatID, "index", i, "error", err)
			continue
		}
		turns = append(turns, &turn)
	}
	return turns, nil
}

// AppendTurn pushes turn onto the history and rewrites metadata and the order
// entry in one MULTI/EXEC. An existing title and creation time are preserved.
// A chat without metadata starts from an empty history.
func (s *ChatStore) AppendTurn(ctx context.Context, chat *domain.Chat, turn *domain.Turn) (*domain.Chat, error) {
	existing, err := decodeMeta(s.client.Get(ctx, metaKey(chat.ID)))
	if err != nil {
		return nil, fmt.Errorf("append turn %s: %w", chat.ID, err)
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	meta := toMeta(chat)
	if existing != nil {
		if existing.Title != "" {
			meta.Title = existing.Title
		}
		meta.CreatedAt = existing.CreatedAt
		merged := &domain.Chat{DocumentIDs: append([]string{}, existing.DocumentIDs...)}
		merged.AddDocumentIDs(meta.DocumentIDs...)
		meta.DocumentIDs = merged.DocumentIDs
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = turn.Timestamp
	}
	meta.LastActivity = turn.Timestamp

	turnData, err := json.Marshal(turn)
	if err != nil {
		return nil, fmt.Errorf("marshal turn: %w", err)
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal chat meta: %w", err)
	}

	var pushCmd *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if existing == nil {
			// History without metadata is left over from an interrupted bulk delete
			pipe.Del(ctx, historyKey(chat.ID))
		}
		pushCmd = pipe.RPush(ctx, historyKey(chat.ID), turnData)
		pipe.Set(ctx, metaKey(chat.ID), metaData, 0)
		pipe.ZAdd(ctx, chatOrderKey, redis.Z{
			Score:  float64(turn.Timestamp.UnixMilli()),
			Member: orderMember(chat.Type, chat.ID),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("append turn %s: %w", chat.ID, err)
	}

	return meta.toChat(int(pushCmd.Val())), nil
}

// SaveMeta writes metadata and the order entry without touching history.
func (s *ChatStore) SaveMeta(ctx context.Context, chat *domain.Chat) error {
	meta := toMeta(chat)
	now := time.Now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	if meta.LastActivity.IsZero() {
		meta.LastActivity = now
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal chat meta: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, metaKey(chat.ID), data, 0)
		pipe.ZAdd(ctx, chatOrderKey, redis.Z{
			Score:  float64(meta.LastActivity.UnixMilli()),
			Member: orderMember(chat.Type, chat.ID),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save chat meta %s: %w", chat.ID, err)
	}
	return nil
}

// List returns chats passing filter, newest first. Order entries whose
// metadata is gone are removed.
func (s *ChatStore) List(ctx context.Context, filter domain.ChatFilter) ([]domain.ChatSummary, error) {
	entries, err := s.client.ZRevRangeWithScores(ctx, chatOrderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	type candidate struct {
		member   string
		chatType domain.ChatType
		chatID   string
		score    float64
		metaCmd  *redis.StringCmd
		lastCmd  *redis.StringCmd
	}

	var orphans []interface{}
	candidates := make([]*candidate, 0, len(entries))
	for _, z := range entries {
		member, _ := z.Member.(string)
		chatType, chatID, ok := parseOrderMember(member)
		if !ok {
			orphans = append(orphans, member)
			continue
		}
		if !filter.Includes(chatType) {
			continue
		}
		candidates = append(candidates, &candidate{member: member, chatType: chatType, chatID: chatID, score: z.Score})
	}

	if len(candidates) > 0 {
		_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, c := range candidates {
				c.metaCmd = pipe.Get(ctx, metaKey(c.chatID))
				c.lastCmd = pipe.LIndex(ctx, historyKey(c.chatID), -1)
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("list chats: %w", err)
		}
	}

	summaries := make([]domain.ChatSummary, 0, len(candidates))
	for _, c := range candidates {
		meta, err := decodeMeta(c.metaCmd)
		if err != nil {
			s.logger.Warn("skipping unreadable chat meta", "chat_id", c.chatID, "error", err)
			continue
		}
		if meta == nil {
			orphans = append(orphans, c.member)
			continue
		}

		summary := domain.ChatSummary{
			ChatID:       c.chatID,
			ChatType:     c.chatType,
			Title:        meta.Title,
			LastActivity: time.UnixMilli(int64(c.score)).UTC(),
		}
		if raw, err := c.lastCmd.Result(); err == nil {
			var last domain.Turn
			if json.Unmarshal([]byte(raw), &last) == nil {
				summary.LastAnswer = last.Answer
			}
		}
		summaries = append(summaries, summary)
	}

	if len(orphans) > 0 {
		if err := s.client.ZRem(ctx, chatOrderKey, orphans...).Err(); err != nil {
			s.logger.Warn("failed to remove orphaned order entries", "count", len(orphans), "error", err)
		} else {
			s.logger.Info("removed orphaned order entries", "count", len(orphans))
		}
	}

	return summaries, nil
}

// Delete removes metadata, history and every order entry for chatID in one
// MULTI/EXEC.
func (s *ChatStore) Delete(ctx context.Context, chatID string) (*domain.DeleteResult, error) {
	members := make([]interface{}, 0, len(domain.AllChatTypes))
	for _, t := range domain.AllChatTypes {
		members = append(members, orderMember(t, chatID))
	}

	var (
		metaDel    *redis.IntCmd
		historyDel *redis.IntCmd
		orderRem   *redis.IntCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		metaDel = pipe.Del(ctx, metaKey(chatID))
		historyDel = pipe.Del(ctx, historyKey(chatID))
		orderRem = pipe.ZRem(ctx, chatOrderKey, members...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete chat %s: %w", chatID, err)
	}

	segments := int(metaDel.Val() + historyDel.Val() + orderRem.Val())
	return &domain.DeleteResult{
		ChatID:          chatID,
		Deleted:         segments > 0,
		SegmentsDeleted: segments,
	}, nil
}

// DeleteAll removes every history list, then every metadata record, and
// finally the order index so a failure never leaves unindexed metadata.
func (s *ChatStore) DeleteAll(ctx context.Context) (*domain.BulkDeleteResult, error) {
	result := &domain.BulkDeleteResult{}

	lists, err := s.deleteByPattern(ctx, chatHistoryPrefix+"*")
	result.DeletedLists = lists
	if err != nil {
		return result, fmt.Errorf("%w: history: %v", domain.ErrPartialDelete, err)
	}

	metas, err := s.deleteByPattern(ctx, chatMetaPrefix+"*")
	result.DeletedMeta = metas
	if err != nil {
		return result, fmt.Errorf("%w: metadata: %v", domain.ErrPartialDelete, err)
	}

	removed, err := s.client.Del(ctx, chatOrderKey).Result()
	if err != nil {
		return result, fmt.Errorf("%w: order index: %v", domain.ErrPartialDelete, err)
	}
	result.RemovedOrderIndex = removed > 0

	s.logger.Info("deleted all chats",
		"deleted_lists", result.DeletedLists,
		"deleted_meta", result.DeletedMeta,
		"removed_order_index", result.RemovedOrderIndex)
	return result, nil
}

func (s *ChatStore) deleteByPattern(ctx context.Context, pattern string) (int, error) {
	deleted := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			deleted += int(n)
			if err != nil {
				return deleted, err
			}
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// Ping checks if the Redis backend is healthy.
func (s *ChatStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
