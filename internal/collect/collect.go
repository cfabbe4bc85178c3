// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collect fetches one day's paper metadata per category and returns
// a deduplicated item set. Sources are pluggable; transient failures are
// retried with exponential backoff before surfacing a FetchError.
package collect

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/internal/logger"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// ErrFetch marks a category whose source stayed unreachable after every attempt.
var ErrFetch = errors.New("paper source fetch failed")

// Source returns the items announced for one category on one date. Each
// source (export API, announcement feed) implements this interface per the
// Strategy pattern.
type Source interface {
	Name() string
	Fetch(ctx context.Context, category string, date time.Time) (Batch, error)
}

// Batch is the raw output of one Source.Fetch call.
type Batch struct {
	Items []types.Item

	// Missing counts identifiers the source listed but could not describe.
	Missing int
}

// Result holds the deduplicated items and collection statistics.
type Result struct {
	Items           []types.Item
	Fetched         int
	Duplicates      int
	MissingMetadata int
}

// FetchError reports a category that could not be fetched.
type FetchError struct {
	Source   string
	Category string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s from %s (%d attempts): %v", e.Category, e.Source, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// Class implements types.Classified.
func (e *FetchError) Class() types.ErrorClass { return types.ClassUpstreamFetch }

// Collector runs a Source across categories.
type Collector struct {
	Source   Source
	Attempts int
	Log      logger.Logger
}

// New returns a Collector for the configured source kind.
func New(cfg types.CollectConfig, log logger.Logger) (*Collector, error) {
	src, err := NewSource(cfg, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &Collector{Source: src, Attempts: cfg.MaxAttempts, Log: log}, nil
}

// NewSource builds the Source named by cfg.Source.
func NewSource(cfg types.CollectConfig, client *http.Client) (Source, error) {
	switch cfg.Source {
	case types.SourceAPI, "":
		return NewArxivSource(client, cfg), nil
	case types.SourceRSS:
		return NewAnnouncementSource(client, cfg), nil
	default:
		return nil, fmt.Errorf("unknown collect source %q (want %s or %s)", cfg.Source, types.SourceAPI, types.SourceRSS)
	}
}

// Collect fetches every category in order and deduplicates by identifier.
// An empty result is not an error.
func (c *Collector) Collect(ctx context.Context, date time.Time, categories []string) (Result, error) {
	if len(categories) == 0 {
		return Result{}, fmt.Errorf("no categories configured")
	}
	log := c.Log
	if log == nil {
		log = logger.Discard()
	}
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = 3
	}

	var res Result
	var all []types.Item
	for _, cat := range categories {
		var batch Batch
		tries := 0
		err := httputil.Retry(ctx, attempts, func(ctx context.Context) error {
			tries++
			b, err := c.Source.Fetch(ctx, cat, date)
			if err != nil {
				log.Warnf("collect: %s %s attempt %d/%d failed: %v", c.Source.Name(), cat, tries, attempts, err)
				return err
			}
			batch = b
			return nil
		})
		if err != nil {
			return res, &FetchError{Source: c.Source.Name(), Category: cat, Attempts: tries, Err: err}
		}

		log.Infof("collect: %s %s returned %d items (%d without metadata)", c.Source.Name(), cat, len(batch.Items), batch.Missing)
		all = append(all, batch.Items...)
		res.MissingMetadata += batch.Missing
	}

	res.Fetched = len(all)
	res.Items, res.Duplicates = Dedupe(all)
	return res, nil
}

// Dedupe keeps the first item seen for each identifier and returns how
// many later copies were dropped.
func Dedupe(items []types.Item) ([]types.Item, int) {
	seen := make(map[string]bool, len(items))
	out := make([]types.Item, 0, len(items))
	dropped := 0
	for _, it := range items {
		if seen[it.ID] {
			dropped++
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out, dropped
}
