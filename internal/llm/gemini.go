// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	Model  string
	models *genai.Models
}

// NewGeminiClient returns a client for cfg.
func NewGeminiClient(ctx context.Context, cfg types.AIConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiClient{Model: cfg.Model, models: client.Models}, nil
}

// Complete generates content for one prompt with the system instruction.
func (g *GeminiClient) Complete(ctx context.Context, r Request) (Response, error) {
	result, err := g.models.GenerateContent(ctx, g.Model, genai.Text(r.Prompt), generateConfig(r))
	if err != nil {
		return Response{}, &APIError{Provider: types.ProviderGemini, Err: err}
	}

	out := Response{Text: result.Text()}
	if u := result.UsageMetadata; u != nil {
		out.InputTokens = int(u.PromptTokenCount)
		out.OutputTokens = int(u.CandidatesTokenCount)
	}
	if out.Text == "" {
		return out, fmt.Errorf("%w: no text content in Gemini response", ErrEmpty)
	}
	return out, nil
}

func generateConfig(r Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(r.Temperature)),
	}
	if r.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(r.MaxTokens)
	}
	if r.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: r.System}}}
	}
	return cfg
}
