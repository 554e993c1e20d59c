package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sjsage522/catalogworker/pkg/errors"
)

// mockFetcher serves canned HTML per URL and records every request
type mockFetcher struct {
	t        *testing.T
	pages    map[string]string
	requests []string
}

func newMockFetcher(t *testing.T, pages map[string]string) *mockFetcher {
	return &mockFetcher{t: t, pages: pages}
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (Document, error) {
	m.requests = append(m.requests, url)
	html, ok := m.pages[url]
	if !ok {
		return nil, errors.NewStatus(url, 404)
	}
	doc, err := ParseDocumentString(html, url)
	require.NoError(m.t, err)
	return doc, nil
}

func listingPage(hrefs ...string) string {
	html := `<html><body><div class="grid">`
	for _, h := range hrefs {
		html += `<a href="` + h + `">item</a>`
	}
	return html + `</div></body></html>`
}
