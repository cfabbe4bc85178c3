// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// articleSelectors locate the paper body in a rendered page, in order.
var articleSelectors = []string{"article", "div.ltx_page_content"}

// skipElements never contribute text.
var skipElements = map[string]bool{
	"script": true, "style": true, "nav": true, "noscript": true,
	"button": true, "svg": true, "annotation": true, "annotation-xml": true,
}

// blockElements end a line of text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "figcaption": true, "blockquote": true,
	"pre": true, "dd": true, "dt": true, "br": true, "ul": true, "ol": true,
}

// paragraphElements are followed by a blank line.
var paragraphElements = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// HTMLMethod fetches the rendered HTML version of a paper.
type HTMLMethod struct {
	Client    *http.Client
	UserAgent string
	Throttle  *httputil.Throttle
}

// Name returns the method identifier.
func (m *HTMLMethod) Name() types.ExtractionMethod { return types.MethodHTML }

// Fetch downloads item.HTMLURL and extracts the article text. A 404 means
// the paper has no HTML rendering.
func (m *HTMLMethod) Fetch(ctx context.Context, item types.Item) (Raw, error) {
	if item.HTMLURL == "" {
		return Raw{}, fmt.Errorf("%w: no HTML URL", ErrNotFound)
	}
	data, err := download(ctx, m.Client, m.Throttle, item.HTMLURL, m.UserAgent, "")
	if err != nil {
		return Raw{}, err
	}
	text, err := HTMLText(data, item.HTMLURL)
	if err != nil {
		return Raw{}, err
	}
	return Raw{Text: text}, nil
}

// HTMLText returns the text of the page's article body. When no known
// container exists it falls back to readability, then to trafilatura.
func HTMLText(data []byte, pageURL string) (string, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)
	for _, sel := range articleSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			var b strings.Builder
			for _, n := range found.Nodes {
				nodeText(n, &b)
			}
			return b.String(), nil
		}
	}

	u, _ := url.Parse(pageURL)
	if article, err := readability.FromDocument(root, u); err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent, nil
	}

	result, err := trafilatura.Extract(bytes.NewReader(data), trafilatura.Options{OriginalURL: u})
	if err != nil {
		return "", fmt.Errorf("no article content: %w", err)
	}
	if result == nil || strings.TrimSpace(result.ContentText) == "" {
		return "", fmt.Errorf("no article content in %s", pageURL)
	}
	return result.ContentText, nil
}

// nodeText writes the visible text under n, one line per block element.
func nodeText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte(' ')
			}
			b.WriteString(t)
		}
		return
	case html.ElementNode:
		if skipElements[n.Data] {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		nodeText(c, b)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteString("\n")
		if paragraphElements[n.Data] {
			b.WriteString("\n")
		}
	}
}
