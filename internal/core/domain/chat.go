package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChatType is the closed set of conversation kinds
type ChatType string

const (
	ChatTypeQuestion    ChatType = "question"    // Open-ended questions over the knowledge bank
	ChatTypeInsight     ChatType = "insight"     // Drill-downs over the insight bank
	ChatTypeDocumentQnA ChatType = "documentqna" // Questions over uploaded documents only
)

// AllChatTypes lists every chat type in display order
var AllChatTypes = []ChatType{ChatTypeQuestion, ChatTypeInsight, ChatTypeDocumentQnA}

// ParseChatType converts a raw string into a ChatType.
// An empty string defaults to ChatTypeQuestion.
func ParseChatType(s string) (ChatType, error) {
	switch ChatType(strings.ToLower(strings.TrimSpace(s))) {
	case "", ChatTypeQuestion:
		return ChatTypeQuestion, nil
	case ChatTypeInsight:
		return ChatTypeInsight, nil
	case ChatTypeDocumentQnA:
		return ChatTypeDocumentQnA, nil
	default:
		return "", fmt.Errorf("%w: unknown chat_type %q", ErrInvalidInput, s)
	}
}

// IsValid returns true for the three known chat types
func (t ChatType) IsValid() bool {
	switch t {
	case ChatTypeQuestion, ChatTypeInsight, ChatTypeDocumentQnA:
		return true
	default:
		return false
	}
}

// KnowledgeSource returns the persistent bank a chat type retrieves from.
// DocumentQnA chats have no bank and answer from attached documents only.
func (t ChatType) KnowledgeSource() (KnowledgeSource, bool) {
	switch t {
	case ChatTypeQuestion:
		return KnowledgeSourceKnowledge, true
	case ChatTypeInsight:
		return KnowledgeSourceInsight, true
	case ChatTypeDocumentQnA:
		return "", false
	default:
		return "", false
	}
}

// Chat is a persisted conversation thread.
// Title is set once, on the first successful turn, and never changes afterwards.
type Chat struct {
	ID           string    `json:"chat_id"`
	Type         ChatType  `json:"chat_type"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title,omitempty"`
	DocumentIDs  []string  `json:"document_ids"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	TurnCount    int       `json:"turn_count"`

	// Turns holds the ordered history (oldest first) when loaded
	Turns []*Turn `json:"history,omitempty"`

	// persisted is false for a chat minted by Resolve that has no stored metadata yet
	persisted bool
}

// NewChat creates an unpersisted chat bound to id
func NewChat(id string, chatType ChatType, userID string) *Chat {
	return &Chat{
		ID:          id,
		Type:        chatType,
		UserID:      userID,
		DocumentIDs: []string{},
	}
}

// IsPersisted reports whether the chat has stored metadata
func (c *Chat) IsPersisted() bool {
	return c.persisted
}

// MarkPersisted flags the chat as loaded from or written to the session store
func (c *Chat) MarkPersisted() {
	c.persisted = true
}

// HasTitle returns true once the first turn assigned a title
func (c *Chat) HasTitle() bool {
	return c.Title != ""
}

// AddDocumentIDs merges ids into the chat's ordered document set.
// Returns true if any id was new.
func (c *Chat) AddDocumentIDs(ids ...string) bool {
	seen := make(map[string]struct{}, len(c.DocumentIDs))
	for _, id := range c.DocumentIDs {
		seen[id] = struct{}{}
	}
	changed := false
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		c.DocumentIDs = append(c.DocumentIDs, id)
		changed = true
	}
	return changed
}

// Turn is one question/answer exchange within a chat
type Turn struct {
	Question          string    `json:"question"`
	Answer            string    `json:"answer"`
	FollowUpQuestions []string  `json:"follow_up_questions"`
	Tags              []Tag     `json:"tags"`
	DocumentIDs       []string  `json:"document_ids,omitempty"`
	Timestamp         time.Time `json:"ts"`
}

// Tag labels the source an answer was grounded on
type Tag struct {
	Name      string `json:"name"`
	SourceURL string `json:"source_url,omitempty"`
}

// ChatSummary is one entry of the recency-ordered chat listing
type ChatSummary struct {
	ChatID       string    `json:"chat_id"`
	ChatType     ChatType  `json:"chat_type"`
	Title        string    `json:"title"`
	LastAnswer   string    `json:"last_answer,omitempty"`
	LastActivity time.Time `json:"timestamp"`
}

// ChatFilter selects which chat types a listing includes
type ChatFilter struct {
	Types map[ChatType]bool
}

// NewChatFilter builds a filter from the include flags
func NewChatFilter(includeQuestion, includeInsight, includeDocumentQnA bool) ChatFilter {
	return ChatFilter{Types: map[ChatType]bool{
		ChatTypeQuestion:    includeQuestion,
		ChatTypeInsight:     includeInsight,
		ChatTypeDocumentQnA: includeDocumentQnA,
	}}
}

// Includes returns true if chats of type t pass the filter
func (f ChatFilter) Includes(t ChatType) bool {
	return f.Types[t]
}

// DeleteResult reports the outcome of deleting a single chat
type DeleteResult struct {
	ChatID          string `json:"chat_id"`
	Deleted         bool   `json:"deleted"`
	SegmentsDeleted int    `json:"segments_deleted"`
}

// BulkDeleteResult reports the outcome of deleting every chat
type BulkDeleteResult struct {
	DeletedLists      int  `json:"deleted_lists"`
	DeletedMeta       int  `json:"deleted_meta"`
	RemovedOrderIndex bool `json:"removed_order_zset"`
}

// DefaultTitle is shown for chats that have no turns yet
const DefaultTitle = "Conversation"

// DisplayTitle returns the stored title or a placeholder for untitled chats
func (s ChatSummary) DisplayTitle() string {
	if s.Title == "" {
		return DefaultTitle
	}
	return s.Title
}
