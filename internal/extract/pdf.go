// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// PDFMethod downloads the primary document and extracts its text layer.
type PDFMethod struct {
	Client    *http.Client
	UserAgent string
	Throttle  *httputil.Throttle
}

// Name returns the method identifier.
func (m *PDFMethod) Name() types.ExtractionMethod { return types.MethodPDF }

// Fetch downloads item.PDFURL, rejects non-PDF responses, validates the
// file structure and returns its plain text.
func (m *PDFMethod) Fetch(ctx context.Context, item types.Item) (Raw, error) {
	if item.PDFURL == "" {
		return Raw{}, fmt.Errorf("%w: no PDF URL", ErrNotFound)
	}
	data, err := download(ctx, m.Client, m.Throttle, item.PDFURL, m.UserAgent, "application/pdf")
	if err != nil {
		return Raw{}, err
	}
	return PDFText(data)
}

// PDFText validates data with pdfcpu and extracts the text of every page.
func PDFText(data []byte) (Raw, error) {
	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return Raw{}, fmt.Errorf("invalid PDF: %w", err)
	}

	text, err := plainText(data)
	if err != nil {
		return Raw{}, err
	}
	return Raw{Text: text, PageCount: pages}, nil
}

// plainText reads the text layer. The reader panics on some malformed
// content streams, which is reported as an error.
func plainText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reading PDF text: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	content, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	return buf.String(), nil
}

// download fetches url after waiting on the shared throttle. When
// wantType is set the response media type must match it. A 404 wraps
// ErrNotFound.
func download(ctx context.Context, client *http.Client, throttle *httputil.Throttle, url, userAgent, wantType string) ([]byte, error) {
	if err := throttle.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if wantType != "" {
		req.Header.Set("Accept", wantType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: HTTP 404 from %s", ErrNotFound, url)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	if wantType != "" {
		mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if mt != wantType {
			return nil, fmt.Errorf("unexpected content type %q from %s", resp.Header.Get("Content-Type"), url)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(data) > maxDocumentBytes {
		return nil, fmt.Errorf("document from %s exceeds %d bytes", url, maxDocumentBytes)
	}
	return data, nil
}
