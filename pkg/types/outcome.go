// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"time"
)

// ErrorClass groups failures by how the pipeline reacts to them.
type ErrorClass string

const (
	// ClassUpstreamFetch covers unreachable or malformed paper and document sources.
	ClassUpstreamFetch ErrorClass = "upstream_fetch"
	// ClassLLMContract covers malformed or invalid structured model responses.
	ClassLLMContract ErrorClass = "llm_contract"
	// ClassQualityShortfall covers summaries under the length floor.
	ClassQualityShortfall ErrorClass = "quality_shortfall"
	// ClassPartialItem covers a single item whose document could not be extracted.
	ClassPartialItem ErrorClass = "partial_item"
	// ClassDelivery covers failures of the composition and delivery collaborator.
	ClassDelivery ErrorClass = "delivery"
	// ClassInternal covers everything else (bad config, programming errors).
	ClassInternal ErrorClass = "internal"
)

// Classified is implemented by errors that know their class.
type Classified interface {
	error
	Class() ErrorClass
}

// Classify returns the class of the first Classified error in err's chain,
// or ClassInternal.
func Classify(err error) ErrorClass {
	var c Classified
	if errors.As(err, &c) {
		return c.Class()
	}
	return ClassInternal
}

// OutcomeKind is the shape of the single value handed to delivery.
type OutcomeKind string

const (
	OutcomeDigest   OutcomeKind = "digest"
	OutcomeQuietDay OutcomeKind = "quiet_day"
	OutcomeFailure  OutcomeKind = "failure"
)

// Digest is the normal-day payload.
type Digest struct {
	Summaries []SummaryResult `json:"summaries" yaml:"summaries"`
	Blurbs    []BlurbResult   `json:"blurbs" yaml:"blurbs"`
	Ranking   Ranking         `json:"ranking" yaml:"ranking"`

	// Items indexes the collected items referenced by the ranking.
	Items map[string]Item `json:"items" yaml:"items"`

	// BlurbError is set when the blurb stage failed; summaries still ship.
	BlurbError string `json:"blurb_error,omitempty" yaml:"blurb_error,omitempty"`
}

// FailureRecord describes an unrecovered stage error.
type FailureRecord struct {
	Stage      string     `json:"stage" yaml:"stage"`
	Class      ErrorClass `json:"class" yaml:"class"`
	Diagnostic string     `json:"diagnostic" yaml:"diagnostic"`
	Timestamp  time.Time  `json:"timestamp" yaml:"timestamp"`
}

// RunStats is the append-only counter set for one run.
type RunStats struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	TargetDate string    `json:"target_date" yaml:"target_date"`
	DryRun     bool      `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`

	Collected       int `json:"collected" yaml:"collected"`
	Duplicates      int `json:"duplicates" yaml:"duplicates"`
	MissingMetadata int `json:"missing_metadata" yaml:"missing_metadata"`
	Ranked          int `json:"ranked" yaml:"ranked"`
	RankAttempts    int `json:"rank_attempts" yaml:"rank_attempts"`
	Summaries       int `json:"summaries" yaml:"summaries"`
	Blurbs          int `json:"blurbs" yaml:"blurbs"`
	Truncated       int `json:"truncated" yaml:"truncated"`
	ShortSummaries  int `json:"short_summaries" yaml:"short_summaries"`
	ItemFailures    int `json:"item_failures" yaml:"item_failures"`
	InputTokens     int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens    int `json:"output_tokens" yaml:"output_tokens"`

	Promotions []Promotion `json:"promotions,omitempty" yaml:"promotions,omitempty"`

	// Degraded is set when fewer than the minimum primary results were produced.
	Degraded       bool   `json:"degraded" yaml:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty" yaml:"degraded_reason,omitempty"`

	Timings []StageTiming `json:"timings,omitempty" yaml:"timings,omitempty"`
}

// PipelineOutcome is the one value produced per run. Exactly one of Digest
// or Failure is set, or neither for a quiet day.
type PipelineOutcome struct {
	Kind    OutcomeKind    `json:"kind" yaml:"kind"`
	Date    string         `json:"date" yaml:"date"`
	Digest  *Digest        `json:"digest,omitempty" yaml:"digest,omitempty"`
	Failure *FailureRecord `json:"failure,omitempty" yaml:"failure,omitempty"`
	Stats   RunStats       `json:"stats" yaml:"stats"`

	// DeliveryError is set when the outcome was produced but could not be
	// handed to delivery.
	DeliveryError string `json:"delivery_error,omitempty" yaml:"delivery_error,omitempty"`
}

// Failed reports whether the outcome is a failure record.
func (o PipelineOutcome) Failed() bool {
	return o.Kind == OutcomeFailure
}
