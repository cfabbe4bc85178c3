// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// AnnounceType records how a paper appeared in the daily announcement list.
type AnnounceType string

const (
	AnnounceNew   AnnounceType = "new"
	AnnounceCross AnnounceType = "cross"
)

// venueKeywords mark a comment as a venue annotation rather than a free note.
var venueKeywords = []string{"accepted", "published", "appear", "conference", "workshop"}

// Item holds the metadata for one collected paper. Items are created by the
// collector and are read-only afterwards.
type Item struct {
	// ID is the arXiv identifier without version suffix (e.g. "2602.16714").
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Comment is the optional author comment, often a venue note.
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`

	// Categories lists the subject tags (e.g. "cs.AI", "cs.CL").
	Categories []string `json:"categories" yaml:"categories"`

	// PDFURL is the primary document URI.
	PDFURL string `json:"pdf_url" yaml:"pdf_url"`

	// HTMLURL is the secondary, rendered document URI.
	HTMLURL string `json:"html_url" yaml:"html_url"`

	// Published is the publication or preprint date.
	Published time.Time `json:"published" yaml:"published"`

	// AnnounceType is set when the item came from the announcement feed.
	AnnounceType AnnounceType `json:"announce_type,omitempty" yaml:"announce_type,omitempty"`
}

// Venue returns the comment when it reads like a venue annotation
// ("Accepted at ICLR 2026"), or "" otherwise.
func (it Item) Venue() string {
	if it.Comment == "" {
		return ""
	}
	lower := strings.ToLower(it.Comment)
	for _, kw := range venueKeywords {
		if strings.Contains(lower, kw) {
			return it.Comment
		}
	}
	return ""
}

// AuthorList joins up to max author names, noting how many were left out.
func (it Item) AuthorList(max int) string {
	if max <= 0 || len(it.Authors) <= max {
		return strings.Join(it.Authors, ", ")
	}
	return strings.Join(it.Authors[:max], ", ") + " (+ " + itoa(len(it.Authors)-max) + " more)"
}

// IndexItems builds an ID lookup for a collected item set.
func IndexItems(items []Item) map[string]Item {
	m := make(map[string]Item, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return m
}
