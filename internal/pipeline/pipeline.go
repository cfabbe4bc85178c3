// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs one digest: collect, rank, analyze the primary
// tier, blurb the secondary tier, and hand exactly one outcome to delivery.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/paper-digest/internal/analyze"
	"github.com/pdiddy/paper-digest/internal/bizday"
	"github.com/pdiddy/paper-digest/internal/blurb"
	"github.com/pdiddy/paper-digest/internal/collect"
	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/logger"
	"github.com/pdiddy/paper-digest/internal/rank"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// State is a node of the run state machine.
type State string

const (
	StateCollecting          State = "COLLECTING"
	StateRanking             State = "RANKING"
	StateExtractingAnalyzing State = "EXTRACTING_ANALYZING"
	StateBlurbing            State = "BLURBING"
	StateComposing           State = "COMPOSING"
	StateDone                State = "DONE"
	StateQuietDay            State = "QUIET_DAY"
	StateFailed              State = "FAILED"
)

// Stage names recorded on failure.
const (
	StageCollector = "Collector"
	StageRanker    = "Ranker"
	StageAnalyzer  = "Analyzer"
	StageBlurbs    = "BlurbGenerator"
)

// diagnosticLimit bounds the error text carried by a failure record.
const diagnosticLimit = 2000

// Collector fetches the day's items. *collect.Collector satisfies it.
type Collector interface {
	Collect(ctx context.Context, date time.Time, categories []string) (collect.Result, error)
}

// Ranker ranks items. *rank.Ranker satisfies it.
type Ranker interface {
	Rank(ctx context.Context, date time.Time, items []types.Item) (rank.Result, error)
}

// Analyzer summarizes the primary tier. *analyze.Analyzer satisfies it.
type Analyzer interface {
	Run(ctx context.Context, ranking types.Ranking, items map[string]types.Item) (analyze.Result, error)
}

// BlurbGenerator writes the secondary tier. *blurb.Generator satisfies it.
type BlurbGenerator interface {
	Generate(ctx context.Context, entries []types.RankingEntry, items map[string]types.Item) (blurb.Result, error)
}

// Delivery receives the outcome: digests and quiet days through Deliver,
// failures through Notify.
type Delivery interface {
	Deliver(ctx context.Context, o types.PipelineOutcome) error
	Notify(ctx context.Context, o types.PipelineOutcome) error
}

// Pipeline holds the stage collaborators for one run.
type Pipeline struct {
	Collector Collector
	Ranker    Ranker
	Analyzer  Analyzer
	Blurbs    BlurbGenerator
	Delivery  Delivery

	Categories []string

	// Date is the target submission date. Zero means the business day
	// before today.
	Date   time.Time
	DryRun bool
	Log    logger.Logger

	now         func() time.Time
	newID       func() string
	transitions []State
	entered     time.Time
}

// Transitions returns the states visited by the last Run, in order.
func (p *Pipeline) Transitions() []State {
	out := make([]State, len(p.transitions))
	copy(out, p.transitions)
	return out
}

type run struct {
	date    time.Time
	stats   types.RunStats
	items   []types.Item
	index   map[string]types.Item
	ranking types.Ranking
}

// Run executes the pipeline and returns its single outcome. The error is
// non-nil only when the outcome could not be handed to delivery; it is then
// classified as a delivery error and the outcome carries its text.
func (p *Pipeline) Run(ctx context.Context) (types.PipelineOutcome, error) {
	p.transitions = nil
	log := p.logger()

	r := &run{date: p.Date}
	if r.date.IsZero() {
		r.date = bizday.Previous(p.clock())
	}
	r.stats = types.RunStats{
		RunID:      p.id(),
		TargetDate: r.date.Format("2006-01-02"),
		DryRun:     p.DryRun,
		StartedAt:  p.clock(),
	}
	log.Infof("pipeline: run %s for %s (dry run: %t)", r.stats.RunID, r.stats.TargetDate, p.DryRun)

	p.enter(StateCollecting, &r.stats)
	collected, err := p.Collector.Collect(ctx, r.date, p.Categories)
	if err != nil {
		return p.fail(ctx, r, StageCollector, err)
	}
	r.items = collected.Items
	r.index = types.IndexItems(r.items)
	r.stats.Collected = len(r.items)
	r.stats.Duplicates = collected.Duplicates
	r.stats.MissingMetadata = collected.MissingMetadata
	log.Infof("pipeline: collected %d items (%d duplicates dropped)", len(r.items), collected.Duplicates)

	if len(r.items) == 0 {
		p.enter(StateQuietDay, &r.stats)
		log.Info("pipeline: no items, quiet day")
		return p.handoff(ctx, r, types.PipelineOutcome{Kind: types.OutcomeQuietDay}, false)
	}

	p.enter(StateRanking, &r.stats)
	ranked, err := p.Ranker.Rank(ctx, r.date, r.items)
	r.stats.RankAttempts = ranked.Attempts
	r.stats.InputTokens += ranked.InputTokens
	r.stats.OutputTokens += ranked.OutputTokens
	if err != nil {
		return p.fail(ctx, r, StageRanker, err)
	}
	r.ranking = ranked.Ranking
	r.stats.Ranked = len(r.ranking.Entries)
	for _, e := range r.ranking.Entries {
		wildcard := ""
		if e.Wildcard {
			wildcard = " [wildcard]"
		}
		log.Infof("pipeline:   [%s] #%d %s%s", e.Tier, e.Rank, e.ItemID, wildcard)
	}

	p.enter(StateExtractingAnalyzing, &r.stats)
	analyzed, err := p.Analyzer.Run(ctx, r.ranking, r.index)
	r.stats.Summaries = len(analyzed.Summaries)
	r.stats.Promotions = analyzed.Promotions
	r.stats.ItemFailures = len(analyzed.Failures)
	r.stats.Truncated = analyzed.Truncated
	r.stats.ShortSummaries = analyzed.Short
	r.stats.Degraded = analyzed.Degraded
	r.stats.DegradedReason = analyzed.DegradedReason
	r.stats.InputTokens += analyzed.InputTokens
	r.stats.OutputTokens += analyzed.OutputTokens
	if err != nil {
		return p.fail(ctx, r, StageAnalyzer, err)
	}

	p.enter(StateBlurbing, &r.stats)
	digest := &types.Digest{
		Summaries: analyzed.Summaries,
		Ranking:   r.ranking,
		Items:     r.index,
	}
	blurbs, err := p.Blurbs.Generate(ctx, analyzed.Secondary, r.index)
	r.stats.InputTokens += blurbs.InputTokens
	r.stats.OutputTokens += blurbs.OutputTokens
	if err != nil {
		if ctx.Err() != nil {
			return p.fail(ctx, r, StageBlurbs, err)
		}
		log.Errorf("pipeline: blurbs unavailable, delivering summaries only: %v", err)
		digest.BlurbError = excerpt(err)
	}
	digest.Blurbs = blurbs.Blurbs
	r.stats.Blurbs = len(blurbs.Blurbs)

	p.enter(StateComposing, &r.stats)
	return p.handoff(ctx, r, types.PipelineOutcome{Kind: types.OutcomeDigest, Digest: digest}, true)
}

// handoff finalizes stats and passes the outcome to delivery.
func (p *Pipeline) handoff(ctx context.Context, r *run, o types.PipelineOutcome, done bool) (types.PipelineOutcome, error) {
	if done {
		p.enter(StateDone, &r.stats)
	}
	o.Date = r.stats.TargetDate
	p.finish(&r.stats)
	o.Stats = r.stats

	var err error
	if o.Kind == types.OutcomeFailure {
		err = p.Delivery.Notify(ctx, o)
	} else {
		err = p.Delivery.Deliver(ctx, o)
	}
	log := p.logger()
	if err != nil {
		err = asDeliveryError(err)
		o.DeliveryError = excerpt(err)
		log.Errorf("pipeline: delivery failed: %v", err)
		return o, err
	}
	logger.InfoWithFields(log, "pipeline: outcome delivered", logger.Fields{
		"run_id":    o.Stats.RunID,
		"kind":      string(o.Kind),
		"date":      o.Date,
		"summaries": o.Stats.Summaries,
		"blurbs":    o.Stats.Blurbs,
		"degraded":  o.Stats.Degraded,
		"elapsed":   o.Stats.FinishedAt.Sub(o.Stats.StartedAt).Round(time.Second).String(),
	})
	return o, nil
}

// fail moves the run to FAILED and notifies delivery.
func (p *Pipeline) fail(ctx context.Context, r *run, stage string, err error) (types.PipelineOutcome, error) {
	p.enter(StateFailed, &r.stats)
	rec := &types.FailureRecord{
		Stage:      stage,
		Class:      types.Classify(err),
		Diagnostic: excerpt(err),
		Timestamp:  p.clock(),
	}
	p.logger().Errorf("pipeline: failed at %s (%s): %v", stage, rec.Class, err)
	return p.handoff(ctx, r, types.PipelineOutcome{Kind: types.OutcomeFailure, Failure: rec}, false)
}

// enter records a transition and the time spent in the previous state.
func (p *Pipeline) enter(s State, stats *types.RunStats) {
	now := p.clock()
	if n := len(p.transitions); n > 0 {
		stats.Timings = append(stats.Timings, types.StageTiming{Stage: string(p.transitions[n-1]), Duration: now.Sub(p.entered)})
	}
	p.transitions = append(p.transitions, s)
	p.entered = now
	p.logger().Debugf("pipeline: -> %s", s)
}

func (p *Pipeline) finish(stats *types.RunStats) {
	now := p.clock()
	if n := len(p.transitions); n > 0 {
		stats.Timings = append(stats.Timings, types.StageTiming{Stage: string(p.transitions[n-1]), Duration: now.Sub(p.entered)})
	}
	stats.FinishedAt = now
}

func (p *Pipeline) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p *Pipeline) id() string {
	if p.newID != nil {
		return p.newID()
	}
	return uuid.NewString()
}

func (p *Pipeline) logger() logger.Logger {
	if p.Log == nil {
		return logger.Discard()
	}
	return p.Log
}

func excerpt(err error) string {
	return llm.Excerpt(err.Error(), diagnosticLimit)
}

// deliveryError tags an untyped delivery failure with the delivery class.
type deliveryError struct{ err error }

func (e *deliveryError) Error() string { return fmt.Sprintf("delivery: %v", e.err) }

func (e *deliveryError) Unwrap() error { return e.err }

func (e *deliveryError) Class() types.ErrorClass { return types.ClassDelivery }

func asDeliveryError(err error) error {
	if types.Classify(err) == types.ClassDelivery {
		return err
	}
	return &deliveryError{err: err}
}
