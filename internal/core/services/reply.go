package services

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	// FallbackNoKnowledge is returned without a completion call when retrieval finds nothing
	FallbackNoKnowledge = "I cannot answer based on stored knowledge: no relevant indexed documents were found. You may upload a document related to your question."

	// FallbackNoDocuments is returned when the selected documents hold nothing relevant
	FallbackNoDocuments = "I cannot answer based on the provided documents."
)

// fallbackPhrases mark an answer as "cannot answer", matched case-insensitively
var fallbackPhrases = []string{
	"i cannot answer based on stored knowledge",
	"i cannot answer based on the provided documents",
	"no relevant indexed documents were found",
	"i'm sorry, but the provided context does not contain",
	"do not have that specific information",
}

// IsFallbackAnswer reports whether answer is empty or admits it cannot answer
func IsFallbackAnswer(answer string) bool {
	low := strings.ToLower(strings.TrimSpace(answer))
	if low == "" {
		return true
	}
	for _, p := range fallbackPhrases {
		if strings.Contains(low, p) {
			return true
		}
	}
	return false
}

// completionReply is the structured content of an answer completion
type completionReply struct {
	HasAnswer bool
	Answer    string
	FollowUps []string
	Sources   []string
}

var (
	fencePattern         = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// parseReply extracts the structured reply from raw completion text.
// Fenced or slightly malformed JSON is repaired; plain text becomes the answer.
func parseReply(raw string) completionReply {
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var reply completionReply
	if obj, ok := extractJSONObject(text); ok {
		var payload struct {
			HasAnswer *bool           `json:"has_answer"`
			Answer    json.RawMessage `json:"answer"`
			FollowUps json.RawMessage `json:"follow_up_questions"`
			Sources   json.RawMessage `json:"sources"`
		}
		if err := json.Unmarshal([]byte(obj), &payload); err == nil {
			reply.Answer = stringOrLines(payload.Answer)
			reply.FollowUps = stringList(payload.FollowUps)
			reply.Sources = stringList(payload.Sources)
			reply.HasAnswer = reply.Answer != ""
			if payload.HasAnswer != nil {
				reply.HasAnswer = *payload.HasAnswer && reply.Answer != ""
			}
			if IsFallbackAnswer(reply.Answer) {
				reply.HasAnswer = false
			}
			return reply
		}
	}

	reply.Answer = text
	reply.HasAnswer = !IsFallbackAnswer(text)
	return reply
}

// extractJSONObject slices the outermost {...} and removes trailing commas
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return trailingCommaPattern.ReplaceAllString(text[start:end+1], "$1"), true
}

// stringOrLines decodes a JSON string or an array of strings joined by newlines
func stringOrLines(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	lines := stringList(raw)
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// stringList decodes a JSON array of strings, or a single string, dropping blanks
func stringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return []string{strings.TrimSpace(s)}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// dedupeFollowUps drops blanks and case-insensitive duplicates, keeping at most max
func dedupeFollowUps(items []string, max int) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		key := strings.ToLower(it)
		if it == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
		if len(out) == max {
			break
		}
	}
	return out
}
