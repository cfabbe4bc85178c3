// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-digest pipeline:
// collected items, the reader profile, ranking entries, per-item results,
// run statistics and the single outcome handed to delivery.
package types

import "time"

// Tier selects how a ranked paper is presented in the digest.
type Tier string

const (
	// TierPrimary papers receive a full-text deep summary.
	TierPrimary Tier = "primary"
	// TierSecondary papers receive a short blurb.
	TierSecondary Tier = "secondary"
)

// DefaultRankCount is the number of ranked entries requested per run.
const DefaultRankCount = 10

// RankingEntry is one ranked paper as returned by the ranker.
type RankingEntry struct {
	// Rank is the 1-based position; ranks are contiguous and unique.
	Rank int `json:"rank" yaml:"rank"`

	// ItemID references an Item in the collected set.
	ItemID string `json:"arxiv_id" yaml:"arxiv_id"`

	// Title is echoed back by the model and used only for logging.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	Tier Tier `json:"tier" yaml:"tier"`

	// Justification explains why the paper matters to this reader.
	Justification string `json:"justification" yaml:"justification"`

	// RelevanceTags name the profile interests the paper matches.
	RelevanceTags []string `json:"relevance_tags" yaml:"relevance_tags"`

	// SourceMatch is an optional institution or venue note.
	SourceMatch string `json:"source_match,omitempty" yaml:"source_match,omitempty"`

	// Wildcard marks an off-profile pick.
	Wildcard bool `json:"is_wildcard" yaml:"is_wildcard"`
}

// Ranking is a validated ranking result.
type Ranking struct {
	Entries        []RankingEntry `json:"top_papers" yaml:"top_papers"`
	TotalEvaluated int            `json:"total_papers_evaluated" yaml:"total_papers_evaluated"`
	RankingDate    string         `json:"ranking_date" yaml:"ranking_date"`
}

// ByTier returns the entries of the given tier in rank order.
func (r Ranking) ByTier(t Tier) []RankingEntry {
	var out []RankingEntry
	for _, e := range r.Entries {
		if e.Tier == t {
			out = append(out, e)
		}
	}
	return out
}

// PrimarySlots is the size of the primary tier.
const PrimarySlots = 5

// PrimaryCount returns how many of n ranked entries belong to the primary
// tier: the top PrimarySlots, or all of them when fewer were ranked.
func PrimaryCount(n int) int {
	if n < PrimarySlots {
		return n
	}
	return PrimarySlots
}

// TierForRank returns the tier a rank must carry in a ranking of n entries.
func TierForRank(rank, n int) Tier {
	if rank <= PrimaryCount(n) {
		return TierPrimary
	}
	return TierSecondary
}

// ExtractionMethod names the document source that produced the text.
type ExtractionMethod string

const (
	MethodPDF  ExtractionMethod = "pdf"
	MethodHTML ExtractionMethod = "html"
)

// ExtractedDocument is the normalized full text of one item. It lives only
// for the duration of the analysis of that item.
type ExtractedDocument struct {
	ItemID        string           `json:"item_id" yaml:"item_id"`
	Text          string           `json:"-" yaml:"-"`
	WordCount     int              `json:"word_count" yaml:"word_count"`
	TokenEstimate int              `json:"token_estimate" yaml:"token_estimate"`
	Truncated     bool             `json:"truncated" yaml:"truncated"`
	Method        ExtractionMethod `json:"method" yaml:"method"`

	// PageCount is known only for PDF extraction.
	PageCount int `json:"page_count,omitempty" yaml:"page_count,omitempty"`
}

// Summary section keys, in the order they must appear.
const (
	SectionMotivation   = "motivation"
	SectionCoreIdea     = "core_idea"
	SectionMechanism    = "mechanism"
	SectionResults      = "results"
	SectionLimitations  = "limitations"
	SectionApplications = "applications"
)

// SummarySections lists the six section keys in order.
var SummarySections = []string{
	SectionMotivation,
	SectionCoreIdea,
	SectionMechanism,
	SectionResults,
	SectionLimitations,
	SectionApplications,
}

// SummaryResult is the deep summary of one primary-tier item.
type SummaryResult struct {
	ItemID string `json:"item_id" yaml:"item_id"`
	Rank   int    `json:"rank" yaml:"rank"`

	// Sections maps section keys to their markdown bodies.
	Sections map[string]string `json:"sections" yaml:"sections"`

	// Body is the full markdown narrative as returned by the model.
	Body      string `json:"body" yaml:"body"`
	WordCount int    `json:"word_count" yaml:"word_count"`

	// Expanded is set when the expansion retry was used.
	Expanded bool `json:"expanded" yaml:"expanded"`

	// Short is set when the result stayed below the length floor.
	Short bool `json:"short" yaml:"short"`

	// Promoted is set when the item moved up from the secondary tier.
	Promoted bool `json:"promoted" yaml:"promoted"`

	Document ExtractedDocument `json:"document" yaml:"document"`
}

// BlurbResult is the short write-up of one secondary-tier item.
type BlurbResult struct {
	ItemID     string `json:"arxiv_id" yaml:"arxiv_id"`
	Rank       int    `json:"rank" yaml:"rank"`
	Blurb      string `json:"blurb" yaml:"blurb"`
	ReadThisIf string `json:"read_this_if" yaml:"read_this_if"`
}

// Promotion records one secondary item moved into the primary tier.
type Promotion struct {
	FromID string `json:"from_id" yaml:"from_id"`
	ToID   string `json:"to_id,omitempty" yaml:"to_id,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

// StageTiming records how long one pipeline state took.
type StageTiming struct {
	Stage    string        `json:"stage" yaml:"stage"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}
