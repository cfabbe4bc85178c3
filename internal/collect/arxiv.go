// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// arxivAPIBase is the arXiv export endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// Document URI prefixes for collected items.
var (
	arxivPDFBase  = "https://arxiv.org/pdf/"
	arxivHTMLBase = "https://arxiv.org/html/"
)

// maxPages bounds pagination in case the API misreports its total.
const maxPages = 50

// ArxivSource queries the export API by category and submission date,
// paging through the result set.
type ArxivSource struct {
	Client   *http.Client
	Cfg      types.CollectConfig
	throttle *httputil.Throttle
}

// NewArxivSource returns a source that waits cfg.PageDelay between pages.
func NewArxivSource(client *http.Client, cfg types.CollectConfig) *ArxivSource {
	return &ArxivSource{Client: client, Cfg: cfg, throttle: httputil.NewThrottle(cfg.PageDelay)}
}

// Name returns the source identifier.
func (s *ArxivSource) Name() string { return "arxiv-api" }

// Fetch returns every item submitted in category on date. When the API
// reports a total, paging continues past short pages until that many
// entries arrived or a page comes back empty. Without a total a short page
// ends the result set.
func (s *ArxivSource) Fetch(ctx context.Context, category string, date time.Time) (Batch, error) {
	pageSize := s.Cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	day := date.Format("20060102")
	query := fmt.Sprintf("cat:%s AND submittedDate:[%s0000 TO %s2359]", category, day, day)

	var items []types.Item
	start := 0
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("search_query", query)
		params.Set("start", strconv.Itoa(start))
		params.Set("max_results", strconv.Itoa(pageSize))
		params.Set("sortBy", "submittedDate")
		params.Set("sortOrder", "ascending")

		feed, err := s.get(ctx, params)
		if err != nil {
			return Batch{}, fmt.Errorf("page %d: %w", page, err)
		}
		for _, e := range feed.Entries {
			if it, ok := e.item(); ok {
				items = append(items, it)
			}
		}

		start += len(feed.Entries)
		switch {
		case len(feed.Entries) == 0:
			return Batch{Items: items}, nil
		case feed.TotalResults > 0:
			if start >= feed.TotalResults {
				return Batch{Items: items}, nil
			}
		case len(feed.Entries) < pageSize:
			return Batch{Items: items}, nil
		}
	}
	return Batch{Items: items}, nil
}

// lookup fetches metadata for up to one page of identifiers via id_list.
func (s *ArxivSource) lookup(ctx context.Context, ids []string) ([]types.Item, error) {
	params := url.Values{}
	params.Set("id_list", strings.Join(ids, ","))
	params.Set("max_results", strconv.Itoa(len(ids)))

	feed, err := s.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var items []types.Item
	for _, e := range feed.Entries {
		if it, ok := e.item(); ok {
			items = append(items, it)
		}
	}
	return items, nil
}

func (s *ArxivSource) get(ctx context.Context, params url.Values) (*arxivFeed, error) {
	if err := s.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.Cfg.UserAgent)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return &feed, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	TotalResults int          `xml:"http://a9.com/-/spec/opensearch/1.1/ totalResults"`
	Entries      []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Comment    string          `xml:"http://arxiv.org/schemas/atom comment"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// item converts an entry, reporting false for entries without an identifier.
// The API reports query errors as a single entry whose id is an error URL.
func (e arxivEntry) item() (types.Item, bool) {
	id := extractArxivID(e.ID)
	if id == "" {
		return types.Item{}, false
	}

	it := types.Item{
		ID:       id,
		Title:    collapseSpace(e.Title),
		Abstract: collapseSpace(e.Summary),
		Comment:  collapseSpace(e.Comment),
		PDFURL:   arxivPDFBase + id,
		HTMLURL:  arxivHTMLBase + id,
	}
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			it.Authors = append(it.Authors, name)
		}
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			it.Categories = append(it.Categories, c.Term)
		}
	}
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		it.Published = t
	}
	return it, true
}

// extractArxivID pulls the arXiv ID from an abstract URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return stripVersion(strings.TrimSpace(idURL[idx+len(prefix):]))
}

// stripVersion removes a trailing version suffix ("v1", "v2").
func stripVersion(id string) string {
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
