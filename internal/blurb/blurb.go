// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package blurb writes the short write-ups of the secondary tier in one
// batched model request.
package blurb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/logger"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrBlurbs marks a blurb stage that produced no valid set of blurbs.
var ErrBlurbs = errors.New("blurb generation failed")

// Target blurb length. Blurbs outside the range are logged, not rejected.
const (
	MinBlurbWords = 100
	MaxBlurbWords = 150
)

// Error reports a blurb stage failure. It never invalidates summaries.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("blurb generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrBlurbs, e.Err} }

// Class implements types.Classified.
func (e *Error) Class() types.ErrorClass {
	if errors.Is(e.Err, llm.ErrParse) || errors.Is(e.Err, llm.ErrInvalid) {
		return types.ClassLLMContract
	}
	return types.Classify(e.Err)
}

type response struct {
	Blurbs []types.BlurbResult `json:"blurbs"`
}

// Result holds the blurbs in rank order and the cost of obtaining them.
type Result struct {
	Blurbs       []types.BlurbResult
	Attempts     int
	InputTokens  int
	OutputTokens int
}

// Generator issues the batched blurb request.
type Generator struct {
	Client  llm.Client
	Profile types.Profile
	Cfg     types.AnalyzeConfig
	Log     logger.Logger
}

// New returns a Generator.
func New(client llm.Client, profile types.Profile, cfg types.AnalyzeConfig, log logger.Logger) *Generator {
	return &Generator{Client: client, Profile: profile, Cfg: cfg, Log: log}
}

// Generate returns one blurb per entry, in the entries' rank order. Entries
// whose item is unknown are skipped with a warning. No request is made when
// there is nothing to blurb.
func (g *Generator) Generate(ctx context.Context, entries []types.RankingEntry, items map[string]types.Item) (Result, error) {
	log := g.Log
	if log == nil {
		log = logger.Discard()
	}

	var wanted []types.RankingEntry
	for _, e := range entries {
		if _, ok := items[e.ItemID]; !ok {
			log.Warnf("blurb: item %s not found, skipping", e.ItemID)
			continue
		}
		wanted = append(wanted, e)
	}
	if len(wanted) == 0 {
		return Result{}, nil
	}

	prompt, err := renderPrompt(g.Profile, wanted, items)
	if err != nil {
		return Result{}, &Error{Err: fmt.Errorf("rendering prompt: %w", err)}
	}
	ids := make([]string, len(wanted))
	for i, e := range wanted {
		ids[i] = e.ItemID
	}
	log.Infof("blurb: generating blurbs for %d papers", len(wanted))

	req := llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: g.Cfg.BlurbTemperature,
		MaxTokens:   g.Cfg.BlurbMaxTokens,
	}
	validate := func(r response) error { return Validate(r.Blurbs, ids) }
	stricter := func(req llm.Request, prev error) (llm.Request, error) {
		log.Warnf("blurb: retrying after: %v", prev)
		correction, err := renderCorrection(prev, ids)
		if err != nil {
			return req, err
		}
		req.Prompt += correction
		req.Temperature = 0
		return req, nil
	}

	res, err := llm.CompleteJSON(ctx, g.Client, req, validate, stricter)
	if err != nil {
		return Result{Attempts: res.Attempts}, &Error{Attempts: res.Attempts, Err: err}
	}

	byID := make(map[string]types.BlurbResult, len(res.Value.Blurbs))
	for _, b := range res.Value.Blurbs {
		byID[b.ItemID] = b
	}
	out := make([]types.BlurbResult, 0, len(wanted))
	for _, e := range wanted {
		b := byID[e.ItemID]
		b.Rank = e.Rank
		b.Blurb = strings.TrimSpace(b.Blurb)
		b.ReadThisIf = strings.TrimSpace(b.ReadThisIf)
		if n := len(strings.Fields(b.Blurb)); n < MinBlurbWords || n > MaxBlurbWords {
			log.Warnf("blurb: %s is %d words, outside %d-%d", b.ItemID, n, MinBlurbWords, MaxBlurbWords)
		}
		out = append(out, b)
	}

	log.Infof("blurb: %d blurbs in %d attempt(s), tokens in=%d out=%d", len(out), res.Attempts, res.InputTokens, res.OutputTokens)
	return Result{
		Blurbs:       out,
		Attempts:     res.Attempts,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
	}, nil
}

// Validate checks that blurbs hold exactly one non-empty entry per
// requested identifier and nothing else.
func Validate(blurbs []types.BlurbResult, ids []string) error {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var problems []string
	seen := make(map[string]bool, len(blurbs))
	for i, b := range blurbs {
		pos := fmt.Sprintf("blurb %d", i+1)
		switch {
		case b.ItemID == "":
			problems = append(problems, pos+": missing arxiv_id")
		case !want[b.ItemID]:
			problems = append(problems, fmt.Sprintf("%s: unexpected arxiv_id %q", pos, b.ItemID))
		case seen[b.ItemID]:
			problems = append(problems, fmt.Sprintf("%s: duplicate arxiv_id %q", pos, b.ItemID))
		default:
			seen[b.ItemID] = true
		}
		if strings.TrimSpace(b.Blurb) == "" {
			problems = append(problems, pos+": empty blurb")
		}
		if strings.TrimSpace(b.ReadThisIf) == "" {
			problems = append(problems, pos+": empty read_this_if")
		}
	}
	for _, id := range ids {
		if !seen[id] {
			problems = append(problems, fmt.Sprintf("missing blurb for %s", id))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return llm.Invalidf("%s", strings.Join(problems, "; "))
}
