// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// maxPromptAuthors caps the author list in the summary prompt.
const maxPromptAuthors = 15

const systemPrompt = `You are a world-class science communicator who makes cutting-edge AI research accessible to smart professionals who aren't necessarily researchers. Think of your audience as a tech-savvy executive or senior engineer who wants to understand what's happening in AI without reading full papers.

Your writing style is:
- Clear and direct, never condescending
- Uses analogies and examples to explain complex ideas
- Includes specific results and numbers when they tell a story
- Honest about limitations; you don't overhype
- Engaging; the reader should want to finish the summary

You write in a professional but warm tone. No jargon without explanation. No hand-waving. Every claim is grounded in what the paper actually says.`

var summaryPromptTmpl = template.Must(template.New("summary").Parse(`## Reader Profile (for context on what matters to them)

{{.Profile}}

## Paper Metadata

Title: {{.Title}}
Authors: {{.Authors}}
arXiv ID: {{.ID}}
Subjects: {{.Subjects}}
Comments: {{.Comments}}
Venue: {{.Venue}}

## Ranking Context

This paper was ranked #{{.Rank}} out of {{.Total}} papers today.
Ranking justification: {{.Justification}}
Relevance tags: {{.Tags}}

## Full Paper Text

{{.Text}}

## Instructions

Write a detailed summary of this paper following this EXACT structure.
Target length: 1,000-2,000 words total across all sections.

### 1. The "So What?" (1 paragraph)
Open with why this paper matters in plain language. What problem does it solve? Why should a busy professional care? Lead with impact, not technical details.

### 2. The Core Idea (2-3 paragraphs)
Explain the key insight or method in accessible terms. Use analogies where they genuinely help. Assume the reader is intelligent but not a specialist in this specific sub-field.

### 3. How It Works (2-3 paragraphs)
Walk through the approach clearly. Not a full technical deep dive, but enough that the reader understands the mechanism. Skip heavy math and explain the intuition behind it. If there's a novel architecture or pipeline, describe it step by step.

### 4. Key Results (1-2 paragraphs)
What did they find? How does it compare to previous work? Include specific numbers, percentages, or benchmarks when they tell a compelling story. Highlight the results that matter most.

### 5. Limitations & Open Questions (1 paragraph)
Be honest. What doesn't the paper address? What assumptions does it make? What would need to happen for this to be practically useful at scale?

### 6. Real-World Applications & Opportunities (1-2 paragraphs)
Concrete examples of how this research could be applied in industry, products, or businesses. Who should be paying attention, and what could they build with this? Connect it to the reader's interests where relevant.

FORMAT RULES:
- Use markdown headers (### ) for each section, in the order above
- Write in flowing prose, not bullet points (except where a short list genuinely aids clarity)
- Do NOT include the paper title or authors in the summary body
- Do NOT start with "This paper..."; lead with the problem or insight
- Aim for the high end of the word range when the paper warrants it`))

var expansionTmpl = template.Must(template.New("expansion").Parse(`

## Length Correction

Your previous summary was only {{.Words}} words. The minimum is {{.Min}} words and the target is 1,000-2,000. Write the complete summary again with all six sections, expanding each with more concrete detail from the paper: specific mechanisms, numbers and comparisons.`))

type promptData struct {
	Profile       string
	Title         string
	Authors       string
	ID            string
	Subjects      string
	Comments      string
	Venue         string
	Rank          int
	Total         int
	Justification string
	Tags          string
	Text          string
}

func renderPrompt(profile types.Profile, item types.Item, entry types.RankingEntry, total int, text string) (string, error) {
	data := promptData{
		Profile:       profile.JSON(),
		Title:         item.Title,
		Authors:       item.AuthorList(maxPromptAuthors),
		ID:            item.ID,
		Subjects:      strings.Join(item.Categories, ", "),
		Comments:      orDefault(item.Comment, "None"),
		Venue:         orDefault(item.Venue(), "Not specified"),
		Rank:          entry.Rank,
		Total:         total,
		Justification: entry.Justification,
		Tags:          strings.Join(entry.RelevanceTags, ", "),
		Text:          text,
	}

	var buf bytes.Buffer
	if err := summaryPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderExpansion(words, minWords int) string {
	var buf bytes.Buffer
	expansionTmpl.Execute(&buf, struct{ Words, Min int }{words, minWords})
	return buf.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
