// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract fetches and normalizes the full text of a paper. The PDF
// is tried first, then the rendered HTML; text below a sanity threshold
// counts as a failed method. Successful text is size-guarded by tail
// truncation.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/internal/logger"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var (
	// ErrExtractionFailed marks an item for which no method produced usable text.
	ErrExtractionFailed = errors.New("document extraction failed")

	// ErrTooShort marks text under the minimum word count.
	ErrTooShort = errors.New("extracted text below minimum length")

	// ErrNotFound marks a document the source definitely does not have.
	ErrNotFound = errors.New("document not found")
)

// maxDocumentBytes bounds a single download.
const maxDocumentBytes = 64 << 20

// Raw is the unnormalized output of one method.
type Raw struct {
	Text      string
	PageCount int
}

// Method retrieves raw text for an item from one document source.
type Method interface {
	Name() types.ExtractionMethod
	Fetch(ctx context.Context, item types.Item) (Raw, error)
}

// Error reports an item for which both methods failed.
type Error struct {
	ItemID    string
	Primary   error
	Secondary error
}

func (e *Error) Error() string {
	var parts []string
	if e.Primary != nil {
		parts = append(parts, "primary: "+e.Primary.Error())
	}
	if e.Secondary != nil {
		parts = append(parts, "secondary: "+e.Secondary.Error())
	}
	return fmt.Sprintf("extracting %s: %s", e.ItemID, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() []error {
	errs := []error{ErrExtractionFailed}
	if e.Primary != nil {
		errs = append(errs, e.Primary)
	}
	if e.Secondary != nil {
		errs = append(errs, e.Secondary)
	}
	return errs
}

// Class implements types.Classified.
func (e *Error) Class() types.ErrorClass { return types.ClassPartialItem }

// Extractor runs the primary/secondary fallback for one item at a time.
type Extractor struct {
	Primary   Method
	Secondary Method
	MinWords  int
	MaxTokens int
	Log       logger.Logger
}

// New returns an Extractor using the PDF then HTML methods. Both share one
// throttle so consecutive downloads are spaced cfg.FetchDelay apart no
// matter which item or method triggered them.
func New(cfg types.ExtractConfig, log logger.Logger) *Extractor {
	client := &http.Client{Timeout: cfg.Timeout}
	throttle := httputil.NewThrottle(cfg.FetchDelay)
	return &Extractor{
		Primary:   &PDFMethod{Client: client, UserAgent: cfg.UserAgent, Throttle: throttle},
		Secondary: &HTMLMethod{Client: client, UserAgent: cfg.UserAgent, Throttle: throttle},
		MinWords:  cfg.MinWords,
		MaxTokens: cfg.MaxTokens,
		Log:       log,
	}
}

type state int

const (
	stateTryPrimary state = iota
	stateTrySecondary
	stateFailed
)

// Extract returns the normalized document for item, or an *Error when both
// methods fail. It never returns partial text.
func (e *Extractor) Extract(ctx context.Context, item types.Item) (*types.ExtractedDocument, error) {
	log := e.Log
	if log == nil {
		log = logger.Discard()
	}
	fail := &Error{ItemID: item.ID}

	st := stateTryPrimary
	for {
		switch st {
		case stateTryPrimary:
			doc, err := e.attempt(ctx, e.Primary, item)
			if err == nil {
				return doc, nil
			}
			log.Warnf("extract: %s %s failed: %v", item.ID, e.Primary.Name(), err)
			fail.Primary = err
			st = stateTrySecondary
			if ctx.Err() != nil || e.Secondary == nil {
				st = stateFailed
			}

		case stateTrySecondary:
			doc, err := e.attempt(ctx, e.Secondary, item)
			if err == nil {
				return doc, nil
			}
			log.Warnf("extract: %s %s failed: %v", item.ID, e.Secondary.Name(), err)
			fail.Secondary = err
			st = stateFailed

		case stateFailed:
			return nil, fail
		}
	}
}

// attempt runs one method and applies the sanity threshold and size guard.
func (e *Extractor) attempt(ctx context.Context, m Method, item types.Item) (*types.ExtractedDocument, error) {
	raw, err := m.Fetch(ctx, item)
	if err != nil {
		return nil, err
	}

	text := Clean(raw.Text)
	words := WordCount(text)
	if words < e.MinWords {
		return nil, fmt.Errorf("%w: %d words (minimum %d)", ErrTooShort, words, e.MinWords)
	}

	text, truncated := Truncate(text, e.MaxTokens)
	if truncated {
		words = WordCount(text)
	}
	return &types.ExtractedDocument{
		ItemID:        item.ID,
		Text:          text,
		WordCount:     words,
		TokenEstimate: EstimateTokens(text),
		Truncated:     truncated,
		Method:        m.Name(),
		PageCount:     raw.PageCount,
	}, nil
}
