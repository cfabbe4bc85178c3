// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package deliver renders the run outcome to HTML and hands it to
// subscribers over SMTP, or to a local preview directory on dry runs.
package deliver

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pdiddy/paper-digest/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	subjectPrefix = "ArXiv AI Digest"
	absBase       = "https://arxiv.org/abs/"
	maxAuthors    = 6
)

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
}

// Composer renders outcomes to messages.
type Composer struct {
	// ProfileName labels the digest header.
	ProfileName string

	// Categories are named on the quiet-day notice.
	Categories []string

	md  goldmark.Markdown
	now func() time.Time
}

// NewComposer returns a Composer.
func NewComposer(profileName string, categories []string) *Composer {
	return &Composer{
		ProfileName: profileName,
		Categories:  categories,
		md:          goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Typographer)),
		now:         time.Now,
	}
}

// Compose renders o according to its kind.
func (c *Composer) Compose(o types.PipelineOutcome) (Message, error) {
	switch o.Kind {
	case types.OutcomeDigest:
		return c.digest(o)
	case types.OutcomeQuietDay:
		return c.quietDay(o)
	case types.OutcomeFailure:
		return c.failure(o)
	default:
		return Message{}, fmt.Errorf("unknown outcome kind %q", o.Kind)
	}
}

// Subject returns the subject line for o.
func Subject(o types.PipelineOutcome) string {
	day := runDate(o)
	switch o.Kind {
	case types.OutcomeQuietDay:
		return fmt.Sprintf("%s — Quiet Day (%s)", subjectPrefix, day)
	case types.OutcomeFailure:
		return fmt.Sprintf("ArXiv Digest FAILED — %s", day)
	default:
		return fmt.Sprintf("%s — %s", subjectPrefix, day)
	}
}

// runDate is the day the run started, falling back to the target date.
func runDate(o types.PipelineOutcome) string {
	if !o.Stats.StartedAt.IsZero() {
		return o.Stats.StartedAt.Format("2006-01-02")
	}
	return o.Date
}

type summaryView struct {
	Rank     int
	ID       string
	Title    string
	Authors  string
	Venue    string
	Tags     []string
	Wildcard bool
	Promoted bool
	AbsURL   string
	PDFURL   string
	Summary  template.HTML
}

type blurbView struct {
	Rank       int
	ID         string
	Title      string
	Authors    string
	AbsURL     string
	Blurb      string
	ReadThisIf string
}

type digestView struct {
	Title       string
	ProfileName string
	Date        string
	TotalPapers int
	Notice      string
	Primary     []summaryView
	Secondary   []blurbView
	Generated   string
}

func (c *Composer) digest(o types.PipelineOutcome) (Message, error) {
	d := o.Digest
	if d == nil {
		return Message{}, fmt.Errorf("digest outcome without digest")
	}
	entries := make(map[string]types.RankingEntry, len(d.Ranking.Entries))
	for _, e := range d.Ranking.Entries {
		entries[e.ItemID] = e
	}

	subject := Subject(o)
	view := digestView{
		Title:       subject,
		ProfileName: c.ProfileName,
		Date:        o.Date,
		TotalPapers: d.Ranking.TotalEvaluated,
		Notice:      notice(o),
		Generated:   c.now().UTC().Format(time.RFC1123),
	}
	for _, s := range d.Summaries {
		item := d.Items[s.ItemID]
		body, err := c.RenderMarkdown(s.Body)
		if err != nil {
			return Message{}, fmt.Errorf("rendering summary %s: %w", s.ItemID, err)
		}
		e := entries[s.ItemID]
		view.Primary = append(view.Primary, summaryView{
			Rank:     s.Rank,
			ID:       s.ItemID,
			Title:    item.Title,
			Authors:  item.AuthorList(maxAuthors),
			Venue:    item.Venue(),
			Tags:     e.RelevanceTags,
			Wildcard: e.Wildcard,
			Promoted: s.Promoted,
			AbsURL:   absBase + s.ItemID,
			PDFURL:   item.PDFURL,
			Summary:  body,
		})
	}
	for _, b := range d.Blurbs {
		item := d.Items[b.ItemID]
		view.Secondary = append(view.Secondary, blurbView{
			Rank:       b.Rank,
			ID:         b.ItemID,
			Title:      item.Title,
			Authors:    item.AuthorList(maxAuthors),
			AbsURL:     absBase + b.ItemID,
			Blurb:      b.Blurb,
			ReadThisIf: b.ReadThisIf,
		})
	}
	return c.render("digest.html", subject, view)
}

// notice explains a degraded digest to the reader.
func notice(o types.PipelineOutcome) string {
	var parts []string
	if o.Stats.Degraded {
		parts = append(parts, "Fewer deep dives than usual today: some full texts could not be retrieved.")
	}
	if o.Digest.BlurbError != "" {
		parts = append(parts, "Short write-ups for the runner-up papers are unavailable today.")
	}
	return strings.Join(parts, " ")
}

func (c *Composer) quietDay(o types.PipelineOutcome) (Message, error) {
	subject := Subject(o)
	return c.render("quiet_day.html", subject, struct {
		Title      string
		Date       string
		Categories string
	}{subject, o.Date, strings.Join(c.Categories, ", ")})
}

func (c *Composer) failure(o types.PipelineOutcome) (Message, error) {
	f := o.Failure
	if f == nil {
		return Message{}, fmt.Errorf("failure outcome without failure record")
	}
	subject := Subject(o)
	return c.render("failure.html", subject, struct {
		Title      string
		Stage      string
		Class      types.ErrorClass
		Timestamp  string
		Date       string
		RunID      string
		Collected  int
		Diagnostic string
	}{
		Title:      subject,
		Stage:      f.Stage,
		Class:      f.Class,
		Timestamp:  f.Timestamp.UTC().Format(time.RFC3339),
		Date:       o.Date,
		RunID:      o.Stats.RunID,
		Collected:  o.Stats.Collected,
		Diagnostic: f.Diagnostic,
	})
}

func (c *Composer) render(name, subject string, data any) (Message, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("rendering %s: %w", name, err)
	}
	return Message{Subject: subject, HTML: buf.String()}, nil
}

// RenderMarkdown converts a markdown summary to HTML. Raw HTML in the
// source is omitted.
func (c *Composer) RenderMarkdown(src string) (template.HTML, error) {
	md := c.md
	if md == nil {
		md = goldmark.New()
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
