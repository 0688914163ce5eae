package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested chat, document or insight was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is malformed or violates a constraint
	ErrInvalidInput = errors.New("invalid input")

	// ErrChatTypeMismatch indicates an existing chat id was used with another chat type.
	// It wraps ErrInvalidInput so callers can treat it as a validation failure.
	ErrChatTypeMismatch = &wrappedError{msg: "chat type mismatch", parent: ErrInvalidInput}

	// ErrUpstream indicates an embedding, completion, knowledge-store or
	// session-store call failed or timed out
	ErrUpstream = errors.New("upstream failure")

	// ErrPartialDelete indicates a bulk delete could not remove every matched record
	ErrPartialDelete = errors.New("partial delete")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrServiceUnavailable indicates an AI service is not configured or could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrLockTimeout indicates a per-chat lock could not be obtained in time.
	// It wraps ErrUpstream since the session store did not respond in time.
	ErrLockTimeout = &wrappedError{msg: "lock timeout", parent: ErrUpstream}
)

// wrappedError is a sentinel that also matches its parent with errors.Is
type wrappedError struct {
	msg    string
	parent error
}

func (e *wrappedError) Error() string { return e.msg }

func (e *wrappedError) Unwrap() error { return e.parent }
