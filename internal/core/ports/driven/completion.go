package driven

import (
	"context"
)

// CompletionRole is the author of a completion message
type CompletionRole string

const (
	RoleSystem    CompletionRole = "system"
	RoleUser      CompletionRole = "user"
	RoleAssistant CompletionRole = "assistant"
)

// CompletionMessage is one message of a chat completion prompt
type CompletionMessage struct {
	Role    CompletionRole
	Content string
}

// CompletionRequest describes a single generation call
type CompletionRequest struct {
	Messages []CompletionMessage

	// JSON asks the model to reply with a single JSON object
	JSON bool

	// MaxTokens overrides the service default when > 0
	MaxTokens int
}

// CompletionService produces text from an assembled prompt
type CompletionService interface {
	// Complete runs one generation and returns the raw reply text
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the completion service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the completion service
	Close() error
}
