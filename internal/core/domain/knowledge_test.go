package domain

import (
	"strings"
	"testing"
)

func TestInsightItem_Summarize(t *testing.T) {
	item := &InsightItem{
		ID:      "i1",
		Summary: strings.Repeat("a", 80),
		Tags:    []Tag{{Name: "1"}, {Name: "2"}, {Name: "3"}, {Name: "4"}, {Name: "5"}},
	}

	s := item.Summarize()
	if s.Title != strings.Repeat("a", 50)+"..." {
		t.Errorf("unexpected fallback title: %q", s.Title)
	}
	if len(s.Tags) != InsightTitleMaxTags {
		t.Errorf("expected %d tags, got %d", InsightTitleMaxTags, len(s.Tags))
	}

	titled := (&InsightItem{ID: "i2", Title: "Water use"}).Summarize()
	if titled.Title != "Water use" {
		t.Errorf("expected stored title, got %q", titled.Title)
	}
	if titled.Tags == nil {
		t.Error("tags should be an empty slice")
	}
}

func TestEvidenceConversions(t *testing.T) {
	k := FromKnowledgeItem(&KnowledgeItem{
		ID:                "k1",
		Question:          "What is a C-ESMP?",
		DetailedAnswer:    "A contractor plan.",
		FollowUpQuestions: []string{"Who approves it?"},
		Tags:              []Tag{{Name: "ESMP"}},
	}, 0.9)
	if k.Kind != EvidenceKnowledge || k.Text != "A contractor plan." || k.Score != 0.9 {
		t.Errorf("unexpected knowledge evidence: %+v", k)
	}
	if k.Label() != "knowledge:k1" {
		t.Errorf("unexpected label %q", k.Label())
	}

	i := FromInsightItem(&InsightItem{ID: "i1", Title: "T", Summary: "only summary"}, 0.8)
	if i.Text != "only summary" {
		t.Errorf("expected summary fallback, got %q", i.Text)
	}

	d := FromDocumentChunk(&DocumentChunk{ID: "c1", Content: "chunk"}, "notes.txt", 0.7)
	if d.Kind != EvidenceDocument || len(d.Tags) != 1 || d.Tags[0].Name != "notes.txt" {
		t.Errorf("unexpected document evidence: %+v", d)
	}
}

func TestUploadMimeType(t *testing.T) {
	if mime, ok := UploadMimeType("Report.MD"); !ok || mime != "text/markdown" {
		t.Errorf("unexpected markdown result: %s %v", mime, ok)
	}
	if _, ok := UploadMimeType("scan.pdf"); ok {
		t.Error("pdf should be unsupported")
	}
}

func TestRetrievalOptions_Validate(t *testing.T) {
	if err := DefaultRetrievalOptions().Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
	if err := (RetrievalOptions{TopK: 0, CandidatePool: 10}).Validate(); err == nil {
		t.Error("expected error for top_k 0")
	}
	if err := (RetrievalOptions{TopK: 5, CandidatePool: 4}).Validate(); err == nil {
		t.Error("expected error for pool < top_k")
	}
	if err := (RetrievalOptions{TopK: 1, CandidatePool: 1, MinScore: 1.5}).Validate(); err == nil {
		t.Error("expected error for min_score > 1")
	}
}

func TestConversationOptions_Validate(t *testing.T) {
	if err := DefaultConversationOptions().Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
	opts := DefaultConversationOptions()
	opts.Context.MaxChars = 0
	if err := opts.Validate(); err == nil {
		t.Error("expected error for zero max chars")
	}
}
