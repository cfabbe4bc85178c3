// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// arxivRSSBase is the daily announcement feed prefix; the category is
// appended. Declared as a var so tests can substitute an httptest server.
var arxivRSSBase = "https://rss.arxiv.org/rss/"

// metadataBatch is the id_list size per export API call.
const metadataBatch = 100

// AnnouncementSource reads the daily announcement feed for a category,
// keeps new submissions and cross-lists, and fills in full metadata from
// the export API in batches.
//
// The feed always carries the latest announcement, so the date argument
// is informational only.
type AnnouncementSource struct {
	Client *http.Client
	Cfg    types.CollectConfig
	api    *ArxivSource
}

// NewAnnouncementSource returns a source sharing one fetch throttle between
// the feed and the metadata lookups.
func NewAnnouncementSource(client *http.Client, cfg types.CollectConfig) *AnnouncementSource {
	return &AnnouncementSource{
		Client: client,
		Cfg:    cfg,
		api:    NewArxivSource(client, cfg),
	}
}

// Name returns the source identifier.
func (s *AnnouncementSource) Name() string { return "arxiv-rss" }

// Fetch lists the announced identifiers, then looks each batch up. An
// identifier listed more than once is looked up once but emitted for every
// listing, so the collector's dedupe counts the repeats.
func (s *AnnouncementSource) Fetch(ctx context.Context, category string, _ time.Time) (Batch, error) {
	listed, kinds, err := s.announced(ctx, category)
	if err != nil {
		return Batch{}, err
	}

	var unique []string
	seen := make(map[string]bool, len(listed))
	for _, id := range listed {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var b Batch
	found := make(map[string]types.Item, len(unique))
	for start := 0; start < len(unique); start += metadataBatch {
		end := min(start+metadataBatch, len(unique))
		chunk := unique[start:end]

		items, err := s.api.lookup(ctx, chunk)
		if err != nil {
			return Batch{}, fmt.Errorf("metadata batch %d-%d: %w", start, end, err)
		}
		for _, it := range items {
			found[it.ID] = it
		}
		for _, id := range chunk {
			if _, ok := found[id]; !ok {
				b.Missing++
			}
		}
	}

	for _, id := range listed {
		it, ok := found[id]
		if !ok {
			continue
		}
		it.AnnounceType = kinds[id]
		b.Items = append(b.Items, it)
	}
	return b, nil
}

// announced fetches the feed and returns every new and cross-listed
// identifier in feed order, repeats included, with the announce type of
// its first listing.
func (s *AnnouncementSource) announced(ctx context.Context, category string) ([]string, map[string]types.AnnounceType, error) {
	if err := s.api.throttle.Wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivRSSBase+category, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	if s.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.Cfg.UserAgent)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("announcement feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("announcement feed returned HTTP %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing announcement feed: %w", err)
	}

	var ids []string
	kinds := make(map[string]types.AnnounceType, len(feed.Items))
	for _, item := range feed.Items {
		kind := announceType(item)
		if kind != types.AnnounceNew && kind != types.AnnounceCross {
			continue
		}
		id := extractArxivID(item.Link)
		if id == "" {
			continue
		}
		if _, dup := kinds[id]; !dup {
			kinds[id] = kind
		}
		ids = append(ids, id)
	}
	return ids, kinds, nil
}

// announceType reads arxiv:announce_type, falling back to the
// "Announce Type:" line in the description.
func announceType(item *gofeed.Item) types.AnnounceType {
	if ns, ok := item.Extensions["arxiv"]; ok {
		if vals := ns["announce_type"]; len(vals) > 0 {
			return types.AnnounceType(strings.ToLower(strings.TrimSpace(vals[0].Value)))
		}
	}
	const marker = "Announce Type:"
	if idx := strings.Index(item.Description, marker); idx >= 0 {
		rest := strings.Fields(item.Description[idx+len(marker):])
		if len(rest) > 0 {
			return types.AnnounceType(strings.ToLower(rest[0]))
		}
	}
	return ""
}
