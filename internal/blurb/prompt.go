// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blurb

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const maxPromptAuthors = 10

const systemPrompt = `You are a concise AI research curator. You write sharp, informative blurbs that help busy professionals decide whether to read a paper. Every word earns its place.`

var blurbPromptTmpl = template.Must(template.New("blurbs").Parse(`## Reader Profile

{{.Profile}}

## Papers to Summarize
{{range .Papers}}
---
[{{.Rank}}] arxiv_id: {{.ID}}
Title: {{.Title}}
Authors: {{.Authors}}
Abstract: {{.Abstract}}
Comments: {{.Comments}}
Ranking justification: {{.Justification}}
---
{{end}}
## Instructions

For EACH paper above, write a blurb of 100-150 words that:

1. States the core contribution in 1-2 crisp sentences
2. Explains why it's noteworthy (what's new or different)
3. Ends with a "Read this if:" tag pointing to who should care

RETURN THIS EXACT JSON STRUCTURE:
{
  "blurbs": [
    {
      "arxiv_id": "<id>",
      "rank": <number>,
      "blurb": "<100-150 word blurb text>",
      "read_this_if": "<one-line tag, e.g., 'you're building multi-agent systems'>"
    }
  ]
}

Return ONLY valid JSON. No markdown, no commentary outside the JSON.`))

var correctionTmpl = template.Must(template.New("correction").Parse(`

## Correction

Your previous response was rejected: {{.Error}}

Respond again with ONLY the JSON object. It must contain exactly one entry in "blurbs" for each of these arxiv_ids and no others: {{range $i, $id := .IDs}}{{if $i}}, {{end}}{{$id}}{{end}}. Every entry needs a non-empty "blurb" and "read_this_if".`))

type paperBlock struct {
	Rank          int
	ID            string
	Title         string
	Authors       string
	Abstract      string
	Comments      string
	Justification string
}

func renderPrompt(profile types.Profile, entries []types.RankingEntry, items map[string]types.Item) (string, error) {
	data := struct {
		Profile string
		Papers  []paperBlock
	}{Profile: profile.JSON()}

	for _, e := range entries {
		it := items[e.ItemID]
		comments := it.Comment
		if comments == "" {
			comments = "None"
		}
		data.Papers = append(data.Papers, paperBlock{
			Rank:          e.Rank,
			ID:            it.ID,
			Title:         it.Title,
			Authors:       it.AuthorList(maxPromptAuthors),
			Abstract:      it.Abstract,
			Comments:      comments,
			Justification: e.Justification,
		})
	}

	var buf bytes.Buffer
	if err := blurbPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderCorrection(prev error, ids []string) (string, error) {
	var buf bytes.Buffer
	if err := correctionTmpl.Execute(&buf, struct {
		Error string
		IDs   []string
	}{Error: prev.Error(), IDs: ids}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
