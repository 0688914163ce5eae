package domain

import (
	"fmt"
	"time"
)

// KnowledgeSource identifies a persistent, externally authored knowledge bank
type KnowledgeSource string

const (
	KnowledgeSourceKnowledge KnowledgeSource = "knowledge" // Authored Q&A records
	KnowledgeSourceInsight   KnowledgeSource = "insight"   // Authored insight records
)

// IsValid returns true for known knowledge banks
func (s KnowledgeSource) IsValid() bool {
	return s == KnowledgeSourceKnowledge || s == KnowledgeSourceInsight
}

// KnowledgeItem is an authored Q&A record with its embedding.
// Items are read-only to this service.
type KnowledgeItem struct {
	ID                string    `json:"id"`
	Question          string    `json:"question"`
	DetailedAnswer    string    `json:"detailed_answer"`
	FollowUpQuestions []string  `json:"follow_up_questions"`
	Tags              []Tag     `json:"tags"`
	Embedding         []float32 `json:"-"`
}

// InsightItem is an authored insight used as evidence for insight chats
type InsightItem struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Summary        string    `json:"summary"`
	DetailedAnswer string    `json:"detailed_answer"`
	Tags           []Tag     `json:"tags"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// InsightTitleMaxTags caps the tags shown per insight in listings
const InsightTitleMaxTags = 4

// InsightSummary is one entry of the insight listing
type InsightSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	UpdatedAt time.Time `json:"updated_at"`
	Tags      []Tag     `json:"tags"`
}

// Summarize builds the listing entry for an insight.
// Untitled insights use the first 50 characters of the summary.
func (i *InsightItem) Summarize() InsightSummary {
	title := i.Title
	if title == "" {
		title = truncateRunes(i.Summary, 50) + "..."
	}
	tags := i.Tags
	if len(tags) > InsightTitleMaxTags {
		tags = tags[:InsightTitleMaxTags]
	}
	if tags == nil {
		tags = []Tag{}
	}
	return InsightSummary{
		ID:        i.ID,
		Title:     title,
		Summary:   i.Summary,
		UpdatedAt: i.UpdatedAt,
		Tags:      tags,
	}
}

// EvidenceKind distinguishes where a piece of evidence came from
type EvidenceKind string

const (
	EvidenceKnowledge EvidenceKind = "knowledge"
	EvidenceInsight   EvidenceKind = "insight"
	EvidenceDocument  EvidenceKind = "document"
)

// Evidence is a scored candidate handed to the context assembler.
// It normalizes knowledge items, insights and document chunks into one shape.
type Evidence struct {
	Kind              EvidenceKind
	ID                string
	DocumentID        string // set for document chunks only
	Title             string
	Text              string
	FollowUpQuestions []string
	Tags              []Tag
	Score             float64
}

// Label returns the identifier the completion uses to cite this evidence
func (e *Evidence) Label() string {
	return fmt.Sprintf("%s:%s", e.Kind, e.ID)
}

// FromKnowledgeItem converts a scored knowledge item into evidence
func FromKnowledgeItem(item *KnowledgeItem, score float64) *Evidence {
	return &Evidence{
		Kind:              EvidenceKnowledge,
		ID:                item.ID,
		Title:             item.Question,
		Text:              item.DetailedAnswer,
		FollowUpQuestions: item.FollowUpQuestions,
		Tags:              item.Tags,
		Score:             score,
	}
}

// FromInsightItem converts a scored insight into evidence
func FromInsightItem(item *InsightItem, score float64) *Evidence {
	text := item.DetailedAnswer
	if text == "" {
		text = item.Summary
	}
	return &Evidence{
		Kind:  EvidenceInsight,
		ID:    item.ID,
		Title: item.Title,
		Text:  text,
		Tags:  item.Tags,
		Score: score,
	}
}

// FromDocumentChunk converts a scored uploaded chunk into evidence
func FromDocumentChunk(chunk *DocumentChunk, filename string, score float64) *Evidence {
	return &Evidence{
		Kind:       EvidenceDocument,
		ID:         chunk.ID,
		DocumentID: chunk.DocumentID,
		Title:      filename,
		Text:       chunk.Content,
		Tags:       []Tag{{Name: filename}},
		Score:      score,
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
