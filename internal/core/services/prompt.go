package services

import (
	"fmt"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

const answerInstructions = `You answer questions strictly from the evidence provided.
Reply with a single JSON object and nothing else:
{"has_answer": true|false, "answer": "...", "follow_up_questions": ["..."], "sources": ["<evidence label>"]}
- Use only the evidence and the earlier conversation. Do not invent facts.
- If the evidence does not answer the question, set has_answer to false and answer "%s"
- Suggest at most %d follow-up questions answerable from the same evidence.
- List in sources the labels of the evidence entries you used.`

// sourceDescription names the evidence kind for each chat type
func sourceDescription(ct domain.ChatType) string {
	switch ct {
	case domain.ChatTypeInsight:
		return "curated insights"
	case domain.ChatTypeDocumentQnA:
		return "excerpts of documents uploaded by the user"
	default:
		return "an authored question and answer knowledge bank"
	}
}

// buildAnswerMessages renders the prompt for one chat turn
func buildAnswerMessages(chatType domain.ChatType, question string, assembled *AssembledContext, maxFollowUps int) []driven.CompletionMessage {
	fallback := FallbackNoKnowledge
	if chatType == domain.ChatTypeDocumentQnA {
		fallback = FallbackNoDocuments
	}
	system := fmt.Sprintf(answerInstructions, fallback, maxFollowUps) +
		"\nThe evidence comes from " + sourceDescription(chatType) + "."

	msgs := []driven.CompletionMessage{{Role: driven.RoleSystem, Content: system}}
	for _, t := range assembled.Turns {
		msgs = append(msgs,
			driven.CompletionMessage{Role: driven.RoleUser, Content: t.Question},
			driven.CompletionMessage{Role: driven.RoleAssistant, Content: t.Answer},
		)
	}
	msgs = append(msgs, driven.CompletionMessage{
		Role:    driven.RoleUser,
		Content: "Evidence:\n" + assembled.EvidenceText() + "\nQuestion: " + question,
	})
	return msgs
}
