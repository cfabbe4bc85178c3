// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze produces the deep summaries of the primary tier. Items
// whose document cannot be extracted or summarized are replaced by the next
// secondary entry, so the digest keeps its primary slots filled while
// candidates remain.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/logger"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrNoPrimary marks an analysis stage that produced no summary at all.
var ErrNoPrimary = errors.New("no primary summaries produced")

// reasonLimit bounds the failure text stored on a promotion.
const reasonLimit = 300

// Extractor fetches and normalizes the full text of one item.
// *extract.Extractor satisfies it.
type Extractor interface {
	Extract(ctx context.Context, item types.Item) (*types.ExtractedDocument, error)
}

// Failure records one primary candidate that produced no summary.
type Failure struct {
	ItemID string
	Err    error
}

// Error reports an analysis stage whose every candidate failed.
type Error struct {
	Failures []Failure
}

func (e *Error) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.ItemID
	}
	return fmt.Sprintf("%v: %d candidate(s) failed (%s)", ErrNoPrimary, len(e.Failures), strings.Join(ids, ", "))
}

func (e *Error) Unwrap() []error {
	errs := []error{ErrNoPrimary}
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Class implements types.Classified. When every candidate failed on an
// upstream fetch (the model API was unreachable) the run failed upstream;
// otherwise it is a partial-item failure.
func (e *Error) Class() types.ErrorClass {
	if len(e.Failures) == 0 {
		return types.ClassPartialItem
	}
	for _, f := range e.Failures {
		if types.Classify(f.Err) != types.ClassUpstreamFetch {
			return types.ClassPartialItem
		}
	}
	return types.ClassUpstreamFetch
}

// Result is the primary tier after analysis and the secondary entries left
// for the blurb stage.
type Result struct {
	// Summaries are in rank order; promoted items follow the original primaries.
	Summaries []types.SummaryResult

	// Secondary lists the remaining secondary entries in rank order.
	Secondary []types.RankingEntry

	Promotions []types.Promotion
	Failures   []Failure

	Degraded       bool
	DegradedReason string

	Truncated    int
	Short        int
	InputTokens  int
	OutputTokens int
}

// Analyzer summarizes primary-tier items one at a time.
type Analyzer struct {
	Client    llm.Client
	Extractor Extractor
	Profile   types.Profile
	Cfg       types.AnalyzeConfig
	Log       logger.Logger
}

// New returns an Analyzer.
func New(client llm.Client, ex Extractor, profile types.Profile, cfg types.AnalyzeConfig, log logger.Logger) *Analyzer {
	return &Analyzer{Client: client, Extractor: ex, Profile: profile, Cfg: cfg, Log: log}
}

// Run analyzes the primary entries of ranking in rank order. When an item
// fails, the highest-ranked remaining secondary entry takes its slot. The
// result is degraded when fewer than the configured minimum of summaries
// were produced; Run returns an *Error only when no summary was produced
// at all, or the context error when ctx is done.
func (a *Analyzer) Run(ctx context.Context, ranking types.Ranking, items map[string]types.Item) (Result, error) {
	log := a.logger()
	pending := ranking.ByTier(types.TierPrimary)
	secondary := ranking.ByTier(types.TierSecondary)
	total := ranking.TotalEvaluated
	if total == 0 {
		total = len(items)
	}
	originalPrimary := len(pending)

	var res Result
	promoted := make(map[string]bool)
	for len(pending) > 0 {
		entry := pending[0]
		pending = pending[1:]

		log.Infof("analyze: #%d %s", entry.Rank, entry.ItemID)
		sum, err := a.analyzeOne(ctx, entry, items, total, &res)
		if err == nil {
			sum.Promoted = promoted[entry.ItemID]
			res.Summaries = append(res.Summaries, sum)
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.Secondary = secondary
			return res, ctxErr
		}

		log.Warnf("analyze: %s failed: %v", entry.ItemID, err)
		res.Failures = append(res.Failures, Failure{ItemID: entry.ItemID, Err: err})
		if len(secondary) == 0 {
			log.Warnf("analyze: no secondary candidates left to replace %s", entry.ItemID)
			continue
		}

		next := secondary[0]
		secondary = secondary[1:]
		promoted[next.ItemID] = true
		res.Promotions = append(res.Promotions, types.Promotion{FromID: entry.ItemID, ToID: next.ItemID, Reason: reason(err)})
		log.Infof("analyze: promoting #%d %s to replace %s", next.Rank, next.ItemID, entry.ItemID)
		pending = append(pending, next)
	}
	res.Secondary = secondary

	if len(res.Summaries) == 0 && len(res.Failures) > 0 {
		return res, &Error{Failures: res.Failures}
	}

	want := min(a.minPrimary(), originalPrimary)
	if len(res.Summaries) < want {
		res.Degraded = true
		res.DegradedReason = fmt.Sprintf("only %d of %d primary summaries produced (%d failed, %d promoted)",
			len(res.Summaries), originalPrimary, len(res.Failures), len(promoted))
		log.Warnf("analyze: degraded: %s", res.DegradedReason)
	}
	log.Infof("analyze: %d summaries, %d promotions, %d short, %d truncated",
		len(res.Summaries), len(res.Promotions), res.Short, res.Truncated)
	return res, nil
}

// analyzeOne extracts and summarizes one entry. Usage counters on res are
// updated even when the entry fails.
func (a *Analyzer) analyzeOne(ctx context.Context, entry types.RankingEntry, items map[string]types.Item, total int, res *Result) (types.SummaryResult, error) {
	item, ok := items[entry.ItemID]
	if !ok {
		return types.SummaryResult{}, fmt.Errorf("item %s not in collected set", entry.ItemID)
	}

	doc, err := a.Extractor.Extract(ctx, item)
	if err != nil {
		return types.SummaryResult{}, err
	}
	if doc.Truncated {
		res.Truncated++
	}

	prompt, err := renderPrompt(a.Profile, item, entry, total, doc.Text)
	if err != nil {
		return types.SummaryResult{}, fmt.Errorf("rendering prompt: %w", err)
	}
	req := llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: a.Cfg.Temperature,
		MaxTokens:   a.Cfg.MaxTokens,
	}

	resp, err := a.Client.Complete(ctx, req)
	if err != nil {
		return types.SummaryResult{}, fmt.Errorf("summarizing %s: %w", entry.ItemID, err)
	}
	res.InputTokens += resp.InputTokens
	res.OutputTokens += resp.OutputTokens

	body := strings.TrimSpace(resp.Text)
	words := wordCount(body)
	expanded := false
	if floor := a.minWords(); words < floor {
		a.logger().Warnf("analyze: %s summary has %d words, below %d; requesting expansion", entry.ItemID, words, floor)
		expanded = true
		req.Prompt += renderExpansion(words, floor)
		retry, err := a.Client.Complete(ctx, req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return types.SummaryResult{}, ctx.Err()
			}
			a.logger().Warnf("analyze: expansion for %s failed, keeping first summary: %v", entry.ItemID, err)
		default:
			res.InputTokens += retry.InputTokens
			res.OutputTokens += retry.OutputTokens
			if b := strings.TrimSpace(retry.Text); wordCount(b) > words {
				body, words = b, wordCount(b)
			}
		}
	}
	if body == "" {
		return types.SummaryResult{}, fmt.Errorf("summarizing %s: %w", entry.ItemID, llm.ErrEmpty)
	}

	short := words < a.minWords()
	if short {
		res.Short++
		a.logger().Warnf("analyze: accepting short summary for %s (%d words)", entry.ItemID, words)
	}
	sections := ParseSections(body)
	if missing := missingSections(sections); len(missing) > 0 {
		a.logger().Warnf("analyze: %s summary missing sections %s", entry.ItemID, strings.Join(missing, ", "))
	}

	return types.SummaryResult{
		ItemID:    entry.ItemID,
		Rank:      entry.Rank,
		Sections:  sections,
		Body:      body,
		WordCount: words,
		Expanded:  expanded,
		Short:     short,
		Document:  *doc,
	}, nil
}

func (a *Analyzer) minWords() int {
	if a.Cfg.MinWords > 0 {
		return a.Cfg.MinWords
	}
	return 800
}

func (a *Analyzer) minPrimary() int {
	if a.Cfg.MinPrimary > 0 {
		return a.Cfg.MinPrimary
	}
	return 4
}

func (a *Analyzer) logger() logger.Logger {
	if a.Log == nil {
		return logger.Discard()
	}
	return a.Log
}

func reason(err error) string {
	return llm.Excerpt(err.Error(), reasonLimit)
}

func wordCount(s string) int { return len(strings.Fields(s)) }
