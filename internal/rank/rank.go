// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank turns a day's items and the reader profile into a validated
// ranking. The judgment is delegated to the language model; this package
// enforces the response contract and retries once with a stricter request.
package rank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/logger"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrRanking marks a ranking stage that produced no valid ranking.
var ErrRanking = errors.New("ranking failed")

// Error reports a ranking that could not be obtained.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ranking failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrRanking, e.Err} }

// Class implements types.Classified. Contract violations are llm_contract;
// a model API outage keeps its own class.
func (e *Error) Class() types.ErrorClass {
	if errors.Is(e.Err, llm.ErrParse) || errors.Is(e.Err, llm.ErrInvalid) {
		return types.ClassLLMContract
	}
	return types.Classify(e.Err)
}

// Result is a validated ranking and the cost of obtaining it.
type Result struct {
	Ranking      types.Ranking
	Attempts     int
	InputTokens  int
	OutputTokens int
}

// Ranker issues the ranking request and validates the response.
type Ranker struct {
	Client  llm.Client
	Profile types.Profile
	Cfg     types.RankConfig
	Log     logger.Logger
}

// New returns a Ranker.
func New(client llm.Client, profile types.Profile, cfg types.RankConfig, log logger.Logger) *Ranker {
	return &Ranker{Client: client, Profile: profile, Cfg: cfg, Log: log}
}

// Count returns the number of entries to request for n items: the
// configured count, reduced to n when fewer items were collected.
func (r *Ranker) Count(n int) int {
	count := r.Cfg.Count
	if count <= 0 {
		count = types.DefaultRankCount
	}
	return min(count, n)
}

// Rank returns a ranking of the items for date. Entries come back sorted
// by rank. A second invalid response yields an *Error; a partial ranking
// is never returned.
func (r *Ranker) Rank(ctx context.Context, date time.Time, items []types.Item) (Result, error) {
	if len(items) == 0 {
		return Result{}, &Error{Err: errors.New("no items to rank")}
	}
	log := r.Log
	if log == nil {
		log = logger.Discard()
	}

	count := r.Count(len(items))
	day := date.Format("2006-01-02")
	prompt, err := renderPrompt(r.Profile, items, count, day)
	if err != nil {
		return Result{}, &Error{Err: fmt.Errorf("rendering prompt: %w", err)}
	}
	log.Infof("rank: ranking %d items for top %d (~%d input tokens estimated)", len(items), count, len(prompt)/4)

	index := types.IndexItems(items)
	req := llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: r.Cfg.Temperature,
		MaxTokens:   r.Cfg.MaxTokens,
	}
	validate := func(rk types.Ranking) error { return Validate(rk, index, count) }
	stricter := func(req llm.Request, prev error) (llm.Request, error) {
		log.Warnf("rank: retrying with stricter request after: %v", prev)
		correction, err := renderCorrection(prev, count)
		if err != nil {
			return req, err
		}
		req.Prompt += correction
		req.Temperature = 0
		return req, nil
	}

	res, err := llm.CompleteJSON(ctx, r.Client, req, validate, stricter)
	if err != nil {
		return Result{Attempts: res.Attempts}, &Error{Attempts: res.Attempts, Err: err}
	}

	ranking := res.Value
	sort.Slice(ranking.Entries, func(i, j int) bool { return ranking.Entries[i].Rank < ranking.Entries[j].Rank })
	if ranking.TotalEvaluated == 0 {
		ranking.TotalEvaluated = len(items)
	}
	if ranking.RankingDate == "" {
		ranking.RankingDate = day
	}
	for i := range ranking.Entries {
		if ranking.Entries[i].Title == "" {
			ranking.Entries[i].Title = index[ranking.Entries[i].ItemID].Title
		}
	}

	log.Infof("rank: %d entries selected in %d attempt(s), tokens in=%d out=%d",
		len(ranking.Entries), res.Attempts, res.InputTokens, res.OutputTokens)
	return Result{
		Ranking:      ranking,
		Attempts:     res.Attempts,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
	}, nil
}

// Validate checks a parsed ranking against the item set: exactly count
// entries, ranks 1..count each used once, every identifier present in the
// items and used once, tiers matching ranks, and a justification on every
// entry. All violations are reported together.
func Validate(rk types.Ranking, items map[string]types.Item, count int) error {
	var problems []string
	if len(rk.Entries) != count {
		problems = append(problems, fmt.Sprintf("expected %d entries, got %d", count, len(rk.Entries)))
	}

	ranks := make(map[int]bool, len(rk.Entries))
	ids := make(map[string]bool, len(rk.Entries))
	for i, e := range rk.Entries {
		pos := fmt.Sprintf("entry %d", i+1)
		switch {
		case e.Rank < 1 || e.Rank > count:
			problems = append(problems, fmt.Sprintf("%s: rank %d outside 1..%d", pos, e.Rank, count))
		case ranks[e.Rank]:
			problems = append(problems, fmt.Sprintf("%s: duplicate rank %d", pos, e.Rank))
		default:
			ranks[e.Rank] = true
		}

		switch _, known := items[e.ItemID]; {
		case e.ItemID == "":
			problems = append(problems, pos+": missing arxiv_id")
		case !known:
			problems = append(problems, fmt.Sprintf("%s: arxiv_id %q not in today's papers", pos, e.ItemID))
		case ids[e.ItemID]:
			problems = append(problems, fmt.Sprintf("%s: duplicate arxiv_id %q", pos, e.ItemID))
		default:
			ids[e.ItemID] = true
		}

		if e.Rank >= 1 && e.Rank <= count {
			if want := types.TierForRank(e.Rank, count); e.Tier != want {
				problems = append(problems, fmt.Sprintf("%s: rank %d has tier %q, want %q", pos, e.Rank, e.Tier, want))
			}
		}
		if e.Justification == "" {
			problems = append(problems, pos+": missing justification")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return llm.Invalidf("%s", joinProblems(problems))
}

// joinProblems keeps validation messages readable when the model gets
// everything wrong.
func joinProblems(problems []string) string {
	const maxShown = 8
	out := ""
	for i, p := range problems {
		if i == maxShown {
			return out + fmt.Sprintf("; and %d more", len(problems)-maxShown)
		}
		if i > 0 {
			out += "; "
		}
		out += p
	}
	return out
}
