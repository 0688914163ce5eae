package domain

import "fmt"

// RetrievalOptions controls a single vector-similarity query
type RetrievalOptions struct {
	TopK          int     `json:"top_k" yaml:"top_k" validate:"min=1"`
	CandidatePool int     `json:"candidate_pool" yaml:"candidate_pool" validate:"gtefield=TopK"`
	MinScore      float64 `json:"min_score" yaml:"min_score" validate:"gte=0,lte=1"`
}

// DefaultRetrievalOptions returns the defaults used when nothing is configured
func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		TopK:          3,
		CandidatePool: 100,
		MinScore:      0.75,
	}
}

// Validate checks the retrieval bounds
func (o RetrievalOptions) Validate() error {
	if o.TopK < 1 {
		return fmt.Errorf("%w: top_k must be >= 1", ErrInvalidInput)
	}
	if o.CandidatePool < o.TopK {
		return fmt.Errorf("%w: candidate_pool must be >= top_k", ErrInvalidInput)
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		return fmt.Errorf("%w: min_score must be within [0, 1]", ErrInvalidInput)
	}
	return nil
}

// ContextOptions bounds the assembled prompt context
type ContextOptions struct {
	MaxChars  int `json:"max_chars" yaml:"max_chars" validate:"min=1"`
	MaxTurns  int `json:"max_turns" yaml:"max_turns" validate:"min=0"`
	TurnFloor int `json:"turn_floor" yaml:"turn_floor" validate:"min=0"`
}

// DefaultContextOptions returns the default context budget
func DefaultContextOptions() ContextOptions {
	return ContextOptions{
		MaxChars:  6000,
		MaxTurns:  6,
		TurnFloor: 2,
	}
}

// Validate checks the context budget
func (o ContextOptions) Validate() error {
	if o.MaxChars < 1 {
		return fmt.Errorf("%w: max_chars must be >= 1", ErrInvalidInput)
	}
	if o.MaxTurns < 0 || o.TurnFloor < 0 {
		return fmt.Errorf("%w: turn limits must be >= 0", ErrInvalidInput)
	}
	return nil
}

// ConversationOptions groups the per-request knobs of the conversation flow
type ConversationOptions struct {
	Retrieval         RetrievalOptions
	Context           ContextOptions
	MaxFollowUps      int
	DocumentChunkTopK int
}

// DefaultConversationOptions returns the defaults for every conversation knob
func DefaultConversationOptions() ConversationOptions {
	return ConversationOptions{
		Retrieval:         DefaultRetrievalOptions(),
		Context:           DefaultContextOptions(),
		MaxFollowUps:      3,
		DocumentChunkTopK: 5,
	}
}

// Validate checks every nested option group
func (o ConversationOptions) Validate() error {
	if err := o.Retrieval.Validate(); err != nil {
		return err
	}
	if err := o.Context.Validate(); err != nil {
		return err
	}
	if o.MaxFollowUps < 0 {
		return fmt.Errorf("%w: max_follow_ups must be >= 0", ErrInvalidInput)
	}
	if o.DocumentChunkTopK < 1 {
		return fmt.Errorf("%w: document_chunk_top_k must be >= 1", ErrInvalidInput)
	}
	return nil
}
