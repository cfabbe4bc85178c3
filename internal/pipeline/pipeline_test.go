// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/analyze"
	"github.com/pdiddy/paper-digest/internal/blurb"
	"github.com/pdiddy/paper-digest/internal/collect"
	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/internal/llm"
	"github.com/pdiddy/paper-digest/internal/rank"
	"github.com/pdiddy/paper-digest/pkg/types"
)

func init() {
	httputil.BackoffBase = time.Millisecond
}

var (
	monday   = time.Date(2026, 2, 23, 6, 0, 0, 0, time.UTC)
	friday   = time.Date(2026, 2, 20, 6, 0, 0, 0, time.UTC)
	errBoom  = errors.New("boom")
	ctxBg    = context.Background()
	tenItems = makeItems(10)
)

// --- mocks ---

type mockSource struct {
	items []types.Item
	err   error
	calls int
	dates []time.Time
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) Fetch(_ context.Context, _ string, date time.Time) (collect.Batch, error) {
	m.calls++
	m.dates = append(m.dates, date)
	if m.err != nil {
		return collect.Batch{}, m.err
	}
	return collect.Batch{Items: m.items}, nil
}

type mockRanker struct {
	err   error
	calls int
}

func (m *mockRanker) Rank(_ context.Context, _ time.Time, items []types.Item) (rank.Result, error) {
	m.calls++
	if m.err != nil {
		return rank.Result{Attempts: 2}, m.err
	}
	var rk types.Ranking
	n := min(10, len(items))
	for i := 0; i < n; i++ {
		rk.Entries = append(rk.Entries, types.RankingEntry{
			Rank: i + 1, ItemID: items[i].ID, Tier: types.TierForRank(i+1, n), Justification: "fits",
		})
	}
	rk.TotalEvaluated = len(items)
	return rank.Result{Ranking: rk, Attempts: 1, InputTokens: 10, OutputTokens: 5}, nil
}

type mockExtractor struct{ fail map[string]bool }

func (m *mockExtractor) Extract(_ context.Context, item types.Item) (*types.ExtractedDocument, error) {
	if m.fail[item.ID] {
		return nil, fmt.Errorf("no document for %s", item.ID)
	}
	return &types.ExtractedDocument{ItemID: item.ID, Text: "text", Method: types.MethodPDF}, nil
}

type summaryClient struct{}

func (summaryClient) Complete(context.Context, llm.Request) (llm.Response, error) {
	return llm.Response{Text: "### The Core Idea\n\n" + strings.Repeat("word ", 900)}, nil
}

type mockBlurbs struct {
	err     error
	entries []types.RankingEntry
}

func (m *mockBlurbs) Generate(_ context.Context, entries []types.RankingEntry, _ map[string]types.Item) (blurb.Result, error) {
	m.entries = entries
	if m.err != nil {
		return blurb.Result{}, m.err
	}
	var out []types.BlurbResult
	for _, e := range entries {
		out = append(out, types.BlurbResult{ItemID: e.ItemID, Rank: e.Rank, Blurb: "b", ReadThisIf: "r"})
	}
	return blurb.Result{Blurbs: out}, nil
}

type mockDelivery struct {
	delivered []types.PipelineOutcome
	notified  []types.PipelineOutcome
	err       error
}

func (m *mockDelivery) Deliver(_ context.Context, o types.PipelineOutcome) error {
	m.delivered = append(m.delivered, o)
	return m.err
}

func (m *mockDelivery) Notify(_ context.Context, o types.PipelineOutcome) error {
	m.notified = append(m.notified, o)
	return m.err
}

func makeItems(n int) []types.Item {
	items := make([]types.Item, n)
	for i := range items {
		items[i] = types.Item{ID: fmt.Sprintf("2602.%05d", i+1), Title: fmt.Sprintf("Paper %d", i+1)}
	}
	return items
}

type fixture struct {
	source   *mockSource
	ranker   *mockRanker
	extract  *mockExtractor
	blurbs   *mockBlurbs
	delivery *mockDelivery
	p        *Pipeline
}

func newFixture(items []types.Item) *fixture {
	f := &fixture{
		source:   &mockSource{items: items},
		ranker:   &mockRanker{},
		extract:  &mockExtractor{},
		blurbs:   &mockBlurbs{},
		delivery: &mockDelivery{},
	}
	f.p = &Pipeline{
		Collector:  &collect.Collector{Source: f.source, Attempts: 3},
		Ranker:     f.ranker,
		Analyzer:   analyze.New(summaryClient{}, f.extract, types.Profile{}, types.DefaultDigestConfig().Analyze, nil),
		Blurbs:     f.blurbs,
		Delivery:   f.delivery,
		Categories: []string{"cs.AI"},
		now:        func() time.Time { return monday },
		newID:      func() string { return "run-test" },
	}
	return f
}

// --- tests ---

func TestRun_NormalDay(t *testing.T) {
	f := newFixture(tenItems)
	o, err := f.p.Run(ctxBg)
	require.NoError(t, err)

	assert.Equal(t, []State{StateCollecting, StateRanking, StateExtractingAnalyzing, StateBlurbing, StateComposing, StateDone}, f.p.Transitions())
	assert.Equal(t, types.OutcomeDigest, o.Kind)
	assert.Equal(t, "2026-02-20", o.Date, "Monday targets the previous Friday")
	assert.Equal(t, friday.Format("2006-01-02"), f.source.dates[0].Format("2006-01-02"))

	require.NotNil(t, o.Digest)
	assert.Len(t, o.Digest.Summaries, 5)
	assert.Len(t, o.Digest.Blurbs, 5)
	assert.Empty(t, o.Digest.BlurbError)

	assert.Equal(t, "run-test", o.Stats.RunID)
	assert.Equal(t, 10, o.Stats.Collected)
	assert.Equal(t, 10, o.Stats.Ranked)
	assert.Equal(t, 5, o.Stats.Summaries)
	assert.Equal(t, 5, o.Stats.Blurbs)
	assert.False(t, o.Stats.Degraded)
	assert.Len(t, o.Stats.Timings, 6)

	require.Len(t, f.delivery.delivered, 1)
	assert.Empty(t, f.delivery.notified)
}

func TestRun_QuietDayNeverRanks(t *testing.T) {
	f := newFixture(nil)
	o, err := f.p.Run(ctxBg)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeQuietDay, o.Kind)
	assert.Equal(t, []State{StateCollecting, StateQuietDay}, f.p.Transitions())
	assert.Zero(t, f.ranker.calls)
	require.Len(t, f.delivery.delivered, 1)
	assert.Equal(t, types.OutcomeQuietDay, f.delivery.delivered[0].Kind)
	assert.Nil(t, o.Digest)
	assert.Nil(t, o.Failure)
}

func TestRun_CollectorOutageFails(t *testing.T) {
	f := newFixture(nil)
	f.source.err = errBoom

	o, err := f.p.Run(ctxBg)
	require.NoError(t, err)

	assert.Equal(t, 3, f.source.calls)
	assert.True(t, o.Failed())
	assert.Equal(t, []State{StateCollecting, StateFailed}, f.p.Transitions())
	require.NotNil(t, o.Failure)
	assert.Equal(t, StageCollector, o.Failure.Stage)
	assert.Equal(t, types.ClassUpstreamFetch, o.Failure.Class)
	assert.Equal(t, monday, o.Failure.Timestamp)
	assert.Contains(t, o.Failure.Diagnostic, "boom")
	assert.Zero(t, f.ranker.calls)

	require.Len(t, f.delivery.notified, 1)
	assert.Empty(t, f.delivery.delivered)
}

func TestRun_RankingContractFailure(t *testing.T) {
	f := newFixture(tenItems)
	f.ranker.err = &rank.Error{Attempts: 2, Err: llm.Invalidf("expected 10 entries, got 7")}

	o, err := f.p.Run(ctxBg)
	require.NoError(t, err)

	assert.True(t, o.Failed())
	assert.Equal(t, StageRanker, o.Failure.Stage)
	assert.Equal(t, types.ClassLLMContract, o.Failure.Class)
	assert.Equal(t, 2, o.Stats.RankAttempts)
	assert.Equal(t, []State{StateCollecting, StateRanking, StateFailed}, f.p.Transitions())
}

func TestRun_PromotionKeepsPrimaryTierFull(t *testing.T) {
	f := newFixture(tenItems)
	f.extract.fail = map[string]bool{"2602.00003": true}

	o, err := f.p.Run(ctxBg)
	require.NoError(t, err)

	require.NotNil(t, o.Digest)
	assert.Len(t, o.Digest.Summaries, 5)
	require.Len(t, o.Stats.Promotions, 1)
	assert.Equal(t, types.Promotion{FromID: "2602.00003", ToID: "2602.00006", Reason: "no document for 2602.00003"}, o.Stats.Promotions[0])
	assert.Equal(t, 1, o.Stats.ItemFailures)

	require.Len(t, f.blurbs.entries, 4)
	assert.Equal(t, "2602.00007", f.blurbs.entries[0].ItemID)
}

func TestRun_DegradedStillDelivers(t *testing.T) {
	f := newFixture(makeItems(5))
	f.extract.fail = map[string]bool{"2602.00001": true, "2602.00002": true}

	o, err := f.p.Run(ctxBg)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeDigest, o.Kind)
	assert.True(t, o.Stats.Degraded)
	assert.Len(t, o.Digest.Summaries, 3)
}

func TestRun_AllPrimariesFail(t *testing.T) {
	f := newFixture(makeItems(2))
	f.extract.fail = map[string]bool{"2602.00001": true, "2602.00002": true}

	o, err := f.p.Run(ctxBg)
	require.NoError(t, err)

	assert.True(t, o.Failed())
	assert.Equal(t, StageAnalyzer, o.Failure.Stage)
	assert.Equal(t, types.ClassPartialItem, o.Failure.Class)
}

func TestRun_BlurbFailureStillDelivers(t *testing.T) {
	f := newFixture(tenItems)
	f.blurbs.err = &blurb.Error{Attempts: 2, Err: llm.Invalidf("missing blurb for 2602.00009")}

	o, err := f.p.Run(ctxBg)
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeDigest, o.Kind)
	assert.Len(t, o.Digest.Summaries, 5)
	assert.Empty(t, o.Digest.Blurbs)
	assert.Contains(t, o.Digest.BlurbError, "missing blurb")
	assert.Equal(t, StateDone, f.p.Transitions()[len(f.p.Transitions())-1])
	require.Len(t, f.delivery.delivered, 1)
}

func TestRun_DeliveryErrorIsDistinguishable(t *testing.T) {
	f := newFixture(tenItems)
	f.delivery.err = errors.New("smtp: connection refused")

	o, err := f.p.Run(ctxBg)
	require.Error(t, err)

	assert.Equal(t, types.ClassDelivery, types.Classify(err))
	assert.Equal(t, types.OutcomeDigest, o.Kind)
	assert.False(t, o.Failed())
	assert.Contains(t, o.DeliveryError, "connection refused")
}

func TestRun_ExplicitDate(t *testing.T) {
	f := newFixture(nil)
	f.p.Date = time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)

	o, _ := f.p.Run(ctxBg)
	assert.Equal(t, "2026-01-07", o.Date)
	assert.Equal(t, "2026-01-07", o.Stats.TargetDate)
}

func TestRun_DiagnosticTruncated(t *testing.T) {
	f := newFixture(nil)
	f.source.err = errors.New(strings.Repeat("x", 5000))

	o, _ := f.p.Run(ctxBg)
	require.NotNil(t, o.Failure)
	assert.LessOrEqual(t, len(o.Failure.Diagnostic), diagnosticLimit+len("..."))
}
