package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-assist/internal/core/domain"
)

// AssembledContext is the bounded prompt context for one generation.
// Turns are oldest first; Evidence is best match first.
type AssembledContext struct {
	Turns    []*domain.Turn
	Evidence []*domain.Evidence
	Chars    int

	DroppedTurns    int
	DroppedEvidence int
}

// AssembleContext fits prior turns and evidence into opts.MaxChars.
//
// Priority when the budget runs short: the newest opts.TurnFloor turns, then
// evidence from best to worst, then older turns from newest to oldest. If the
// floor alone overflows, the newest turn is truncated to fit.
func AssembleContext(turns []*domain.Turn, evidence []*domain.Evidence, opts domain.ContextOptions) *AssembledContext {
	out := &AssembledContext{}
	budget := opts.MaxChars

	if opts.MaxTurns >= 0 && len(turns) > opts.MaxTurns {
		out.DroppedTurns += len(turns) - opts.MaxTurns
		turns = turns[len(turns)-opts.MaxTurns:]
	}

	floor := opts.TurnFloor
	if floor > len(turns) {
		floor = len(turns)
	}

	// kept turns collected newest first, reversed at the end
	var kept []*domain.Turn
	idx := len(turns) - 1
	overflow := false

	for ; idx >= len(turns)-floor; idx-- {
		t := turns[idx]
		cost := turnCost(t)
		if cost <= budget {
			kept = append(kept, t)
			budget -= cost
			continue
		}
		overflow = true
		if len(kept) == 0 && budget > 0 {
			cut := truncateTurn(t, budget)
			kept = append(kept, cut)
			budget -= turnCost(cut)
			idx--
		}
		break
	}

	if !overflow {
		for i, e := range evidence {
			cost := evidenceCost(e)
			if cost > budget {
				out.DroppedEvidence += len(evidence) - i
				break
			}
			out.Evidence = append(out.Evidence, e)
			budget -= cost
		}

		for ; idx >= 0; idx-- {
			cost := turnCost(turns[idx])
			if cost > budget {
				break
			}
			kept = append(kept, turns[idx])
			budget -= cost
		}
	} else {
		out.DroppedEvidence += len(evidence)
	}
	out.DroppedTurns += idx + 1

	for i := len(kept) - 1; i >= 0; i-- {
		out.Turns = append(out.Turns, kept[i])
	}
	out.Chars = opts.MaxChars - budget
	return out
}

// EvidenceText renders the evidence block handed to the completion
func (c *AssembledContext) EvidenceText() string {
	var sb strings.Builder
	for _, e := range c.Evidence {
		sb.WriteString(renderEvidence(e))
	}
	return sb.String()
}

// HistoryText renders the prior turns, oldest first
func (c *AssembledContext) HistoryText() string {
	var sb strings.Builder
	for _, t := range c.Turns {
		sb.WriteString(renderTurn(t))
	}
	return sb.String()
}

func renderTurn(t *domain.Turn) string {
	return fmt.Sprintf("Q: %s\nA: %s\n", t.Question, t.Answer)
}

func renderEvidence(e *domain.Evidence) string {
	return fmt.Sprintf("[%s] %s\n%s\n", e.Label(), e.Title, e.Text)
}

func turnCost(t *domain.Turn) int {
	return utf8.RuneCountInString(renderTurn(t))
}

func evidenceCost(e *domain.Evidence) int {
	return utf8.RuneCountInString(renderEvidence(e))
}

// turnOverhead is the rune cost of an empty rendered turn
var turnOverhead = utf8.RuneCountInString(renderTurn(&domain.Turn{}))

// truncateTurn shortens t so its rendered form fits in budget runes
func truncateTurn(t *domain.Turn, budget int) *domain.Turn {
	cut := *t
	room := budget - turnOverhead
	if room < 0 {
		room = 0
	}
	q := []rune(t.Question)
	if len(q) >= room {
		cut.Question = string(q[:room])
		cut.Answer = ""
		return &cut
	}
	room -= len(q)
	if a := []rune(t.Answer); len(a) > room {
		cut.Answer = string(a[:room])
	}
	return &cut
}
