// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// maxPromptAuthors caps the author list per paper in the prompt.
const maxPromptAuthors = 10

const systemPrompt = `You are an expert AI research curator. Your job is to read through a day's worth of arXiv papers and identify the ones most relevant, impactful, and interesting to a specific reader based on their profile.

You are thorough, fair, and intellectually curious. You don't just match keywords: you understand the significance of research contributions and can identify genuinely important work even when it doesn't perfectly match the reader's stated interests.`

// rankingPromptTmpl is the user prompt. It carries the profile, every
// paper, the weighting rules and the exact response shape.
var rankingPromptTmpl = template.Must(template.New("ranking").Parse(`## Reader Profile

{{.Profile}}

## Today's Papers ({{len .Papers}} total)
{{range .Papers}}
---
[{{.Index}}] arxiv_id: {{.ID}}
Title: {{.Title}}
Authors: {{.Authors}}
Abstract: {{.Abstract}}
Comments: {{.Comments}}
Subjects: {{.Subjects}}
---
{{end}}
## Instructions

Evaluate ALL papers above against the reader's profile and return the top {{.Count}} most relevant papers, ranked from most to least important.

For each selected paper, provide:
1. The arxiv_id, copied exactly from the list above
2. A justification (2-3 sentences) explaining why this paper matters to this specific reader
3. Relevance tags (which profile interests it matches)
4. Whether this is a wildcard pick (innovative or revolutionary but outside the reader's stated interests)

RANKING CRITERIA (in priority order):
1. Topic relevance to primary interests (highest weight)
2. Novelty: new paradigm or method vs. incremental improvement
3. Practical applicability: can it be used in industry?
4. Source credibility: from a prioritized institution or lab? (boost, not gatekeeper)
5. Venue acceptance: accepted at a top conference? (noted in comments)
6. Breadth of impact: relevant across domains?
7. Wildcard potential: genuinely revolutionary even if outside stated interests?

IMPORTANT RULES:
- Primary interests get MUCH higher weight than secondary interests
- Papers matching "deprioritize" topics should be excluded unless they are truly exceptional
- Include at least 1 wildcard pick if anything qualifies
- A prioritized source is a tiebreaker only: note it in source_match but never rank a paper higher JUST for that
- A great paper from an unknown lab should absolutely make the list

RETURN THIS EXACT JSON STRUCTURE:
{
  "total_papers_evaluated": <number>,
  "ranking_date": "{{.Date}}",
  "top_papers": [
    {
      "rank": <1-{{.Count}}>,
      "arxiv_id": "<id>",
      "title": "<paper title>",
      "tier": "primary" | "secondary",
      "justification": "<2-3 sentences>",
      "relevance_tags": ["<matching interest>"],
      "source_match": "<institution or venue note, or empty>",
      "is_wildcard": <true|false>
    }
  ]
}

Papers ranked 1-{{.Primary}} must have tier "primary".{{if gt .Count .Primary}}
Papers ranked {{.FirstSecondary}}-{{.Count}} must have tier "secondary".{{end}}

Return ONLY valid JSON. No markdown, no commentary outside the JSON.`))

// correctionTmpl is appended for the single stricter retry.
var correctionTmpl = template.Must(template.New("correction").Parse(`

## Correction

Your previous response was rejected: {{.Error}}

Respond again with ONLY the JSON object. It must contain exactly {{.Count}} entries in "top_papers" with ranks 1 through {{.Count}}, each rank used once, each arxiv_id copied exactly from the paper list and used once, tier "primary" for ranks 1-{{.Primary}} and "secondary" for the rest, and a non-empty justification for every entry.`))

type paperBlock struct {
	Index    int
	ID       string
	Title    string
	Authors  string
	Abstract string
	Comments string
	Subjects string
}

type promptData struct {
	Profile        string
	Papers         []paperBlock
	Count          int
	Primary        int
	FirstSecondary int
	Date           string
}

func renderPrompt(profile types.Profile, items []types.Item, count int, date string) (string, error) {
	data := promptData{
		Profile:        profile.JSON(),
		Count:          count,
		Primary:        types.PrimaryCount(count),
		FirstSecondary: types.PrimaryCount(count) + 1,
		Date:           date,
	}
	for i, it := range items {
		comments := it.Comment
		if comments == "" {
			comments = "None"
		}
		data.Papers = append(data.Papers, paperBlock{
			Index:    i + 1,
			ID:       it.ID,
			Title:    it.Title,
			Authors:  it.AuthorList(maxPromptAuthors),
			Abstract: it.Abstract,
			Comments: comments,
			Subjects: strings.Join(it.Categories, ", "),
		})
	}

	var buf bytes.Buffer
	if err := rankingPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderCorrection(prev error, count int) (string, error) {
	var buf bytes.Buffer
	if err := correctionTmpl.Execute(&buf, struct {
		Error   string
		Count   int
		Primary int
	}{Error: prev.Error(), Count: count, Primary: types.PrimaryCount(count)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
