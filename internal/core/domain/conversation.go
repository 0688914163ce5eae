package domain

import (
	"fmt"
	"strings"
)

// AskRequest is one question submitted to a chat
type AskRequest struct {
	Question    string   `json:"question" validate:"required"`
	ChatID      string   `json:"chat_id,omitempty"`
	ChatType    ChatType `json:"chat_type,omitempty" validate:"omitempty,oneof=question insight documentqna"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	UserID      string   `json:"-"`
}

// Normalize trims the question, defaults the chat type and validates required fields
func (r *AskRequest) Normalize() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	ct, err := ParseChatType(string(r.ChatType))
	if err != nil {
		return err
	}
	r.ChatType = ct
	r.ChatID = strings.TrimSpace(r.ChatID)
	return nil
}

// Answer is the result of one conversation turn.
// Exactly one of the detail pointers is set, matching ChatType.
type Answer struct {
	Question          string   `json:"question"`
	Answer            string   `json:"answer"`
	FollowUpQuestions []string `json:"follow_up_questions"`
	ChatID            string   `json:"chat_id"`
	ChatType          ChatType `json:"chat_type"`
	Title             string   `json:"title,omitempty"`
	Tags              []Tag    `json:"tags"`
	HasAnswer         bool     `json:"has_answer"`

	Knowledge *KnowledgeDetails `json:"knowledge,omitempty"`
	Insight   *InsightDetails   `json:"insight,omitempty"`
	Documents *DocumentDetails  `json:"documents,omitempty"`
}

// KnowledgeDetails lists the knowledge items a question answer drew on
type KnowledgeDetails struct {
	MatchedIDs  []string `json:"matched_ids"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// InsightDetails lists the insights an insight answer drew on
type InsightDetails struct {
	InsightIDs  []string `json:"insight_ids"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// DocumentDetails lists the documents a documentqna answer drew on
type DocumentDetails struct {
	DocumentIDs []string `json:"document_ids"`
}

// SetDetails fills the variant matching chatType with the contributing ids
func (a *Answer) SetDetails(bankIDs, documentIDs []string) {
	if bankIDs == nil {
		bankIDs = []string{}
	}
	switch a.ChatType {
	case ChatTypeQuestion:
		a.Knowledge = &KnowledgeDetails{MatchedIDs: bankIDs, DocumentIDs: documentIDs}
	case ChatTypeInsight:
		a.Insight = &InsightDetails{InsightIDs: bankIDs, DocumentIDs: documentIDs}
	case ChatTypeDocumentQnA:
		if documentIDs == nil {
			documentIDs = []string{}
		}
		a.Documents = &DocumentDetails{DocumentIDs: documentIDs}
	}
}

// UploadRequest carries a raw uploaded file
type UploadRequest struct {
	Filename string
	Content  []byte
	ChatID   string
	UserID   string
}

// UploadResult reports a registered upload
type UploadResult struct {
	DocumentID string `json:"document_id"`
	ChatID     string `json:"chat_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// DocumentAskRequest is a one-off question over uploaded documents
type DocumentAskRequest struct {
	DocumentIDs  []string    `json:"document_ids" validate:"required,min=1,dive,required"`
	Question     string      `json:"question" validate:"required"`
	PriorHistory []PriorTurn `json:"prior_history,omitempty"`
}

// DocumentAnswer is the reply to a DocumentAskRequest
type DocumentAnswer struct {
	Question          string   `json:"question"`
	Answer            string   `json:"answer"`
	ProcessingTime    float64  `json:"processing_time"`
	FollowUpQuestions []string `json:"follow_up_questions"`
}
