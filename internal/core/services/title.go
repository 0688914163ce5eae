package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

const (
	titleMaxWords = 7
	titleMaxChars = 60
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// generateTitle asks the completion for a short title built from the first question.
// Any failure falls back to the question itself.
func generateTitle(ctx context.Context, completion driven.CompletionService, question string) string {
	if completion == nil {
		return fallbackTitle(question)
	}

	raw, err := completion.Complete(ctx, driven.CompletionRequest{
		Messages: []driven.CompletionMessage{
			{Role: driven.RoleSystem, Content: "You create concise, descriptive chat titles."},
			{Role: driven.RoleUser, Content: fmt.Sprintf(
				"Generate a short (max %d words) clear, professional title summarizing this chat based ONLY on the first user question below.\n\nQuestion: %s\n\nReturn only the title, no quotes, no punctuation at end.",
				titleMaxWords, question)},
		},
		MaxTokens: 30,
	})
	if err != nil {
		return fallbackTitle(question)
	}
	if title := cleanTitle(raw); title != "" {
		return title
	}
	return fallbackTitle(question)
}

// cleanTitle normalizes a model-produced title
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, "\"'`")
	title = strings.TrimSpace(whitespacePattern.ReplaceAllString(title, " "))
	title = strings.TrimRight(title, ".!?;:,")

	if words := strings.Fields(title); len(words) > titleMaxWords {
		title = strings.Join(words[:titleMaxWords], " ")
	}
	return capTitle(title)
}

// fallbackTitle derives a title from the question's first sentence
func fallbackTitle(question string) string {
	q := strings.TrimSpace(whitespacePattern.ReplaceAllString(question, " "))
	if q == "" {
		return domain.DefaultTitle
	}
	if i := strings.IndexAny(q, ".?!"); i > 0 {
		q = q[:i+1]
	}
	return capTitle(q)
}

func capTitle(title string) string {
	if utf8.RuneCountInString(title) <= titleMaxChars {
		return title
	}
	r := []rune(title)
	return strings.TrimSpace(string(r[:titleMaxChars-3])) + "..."
}
