package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-assist/internal/core/ports/driven"
)

// Ensure MockCompletionService implements CompletionService
var _ driven.CompletionService = (*MockCompletionService)(nil)

// ErrMockCompletion is returned by a scripted completion failure
var ErrMockCompletion = errors.New("mock completion failure")

// MockCompletionService returns scripted replies.
// Title requests (no JSON mode) get TitleReply; answer requests get AnswerReply.
type MockCompletionService struct {
	mu       sync.Mutex
	failures int
	requests []driven.CompletionRequest

	AnswerReply string
	TitleReply  string

	// CompleteFn overrides the scripted replies when set
	CompleteFn func(req driven.CompletionRequest) (string, error)
}

// NewMockCompletionService creates a mock with a generic grounded answer
func NewMockCompletionService() *MockCompletionService {
	return &MockCompletionService{
		AnswerReply: `{"has_answer": true, "answer": "Mock answer.", "follow_up_questions": ["Mock follow-up?"], "sources": []}`,
		TitleReply:  "Mock Conversation Title",
	}
}

func (m *MockCompletionService) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if m.failures > 0 {
		m.failures--
		m.mu.Unlock()
		return "", ErrMockCompletion
	}
	fn := m.CompleteFn
	answer, title := m.AnswerReply, m.TitleReply
	m.mu.Unlock()

	if fn != nil {
		return fn(req)
	}
	if req.JSON {
		return answer, nil
	}
	return title, nil
}

func (m *MockCompletionService) Model() string {
	return "mock-completion-model"
}

func (m *MockCompletionService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockCompletionService) Close() error {
	return nil
}

// SetFailures makes the next n calls fail
func (m *MockCompletionService) SetFailures(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// Requests returns a copy of every request received
func (m *MockCompletionService) Requests() []driven.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]driven.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// AnswerRequests returns only the JSON-mode requests
func (m *MockCompletionService) AnswerRequests() []driven.CompletionRequest {
	var out []driven.CompletionRequest
	for _, r := range m.Requests() {
		if r.JSON {
			out = append(out, r)
		}
	}
	return out
}

// LastPrompt joins the messages of the most recent JSON-mode request
func (m *MockCompletionService) LastPrompt() string {
	reqs := m.AnswerRequests()
	if len(reqs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, msg := range reqs[len(reqs)-1].Messages {
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
