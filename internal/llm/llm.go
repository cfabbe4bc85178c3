// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the language-model collaborator shared by the ranking,
// analysis and blurb stages. Clients return free-form text; callers parse
// it with ParseJSON and validate the result themselves.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/paper-digest/pkg/types"
)

var (
	// ErrParse marks a response that is not well-formed structured data.
	ErrParse = errors.New("malformed model response")

	// ErrInvalid marks a well-formed response that breaks the caller's
	// contract (wrong count, unknown identifier, missing field).
	ErrInvalid = errors.New("invalid model response")

	// ErrEmpty marks a response with no text content.
	ErrEmpty = errors.New("empty model response")
)

// Request is one model call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Response is the model's text and token usage.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client abstracts the model API so tests can supply a mock. Each provider
// implements this interface per the Strategy pattern.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// APIError reports a model API call that failed at the transport level
// after its own retries.
type APIError struct {
	Provider types.Provider
	Status   int
	Err      error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s API returned %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("calling %s API: %v", e.Provider, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Class implements types.Classified.
func (e *APIError) Class() types.ErrorClass { return types.ClassUpstreamFetch }

// Invalidf returns an error wrapping ErrInvalid.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// New returns the client for cfg.Provider.
func New(ctx context.Context, cfg types.AIConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", cfg.Provider)
	}
	switch cfg.Provider {
	case types.ProviderClaude, "":
		return NewClaudeClient(cfg), nil
	case types.ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown AI provider %q (want %s or %s)", cfg.Provider, types.ProviderClaude, types.ProviderGemini)
	}
}
