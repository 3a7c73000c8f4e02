package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/webpulse/webpulse/internal/source"
)

// maxPageBytes bounds how much of an analysed page is read.
const maxPageBytes = 5 << 20

// maxKeyPhrases caps the headings reported as key phrases.
const maxKeyPhrases = 10

const userAgent = "WebPulse/1.0 (+https://github.com/webpulse/webpulse)"

// Page is a fetched HTML document.
type Page struct {
	URL          string
	StatusCode   int
	Body         []byte
	ResponseTime time.Duration
}

// PageFetcher downloads pages for analysis.
type PageFetcher struct {
	client *http.Client
}

// NewPageFetcher creates a fetcher on top of client.
func NewPageFetcher(client *http.Client) *PageFetcher {
	return &PageFetcher{client: client}
}

// Fetch downloads pageURL. Non-2xx responses are errors.
func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	return &Page{
		URL:          pageURL,
		StatusCode:   resp.StatusCode,
		Body:         body,
		ResponseTime: time.Since(start),
	}, nil
}

// ExtractMetaTags reads title, description, keywords and headline phrases.
func ExtractMetaTags(body []byte) (*source.MetaTagsResponse, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := &source.MetaTagsResponse{
		Title:       collapse(doc.Find("head title").First().Text()),
		Description: metaContent(doc, "description", "og:description"),
		Keywords:    metaContent(doc, "keywords"),
		KeyPhrases:  []string{},
	}
	if out.Title == "" {
		out.Title = metaContent(doc, "og:title")
	}

	seen := make(map[string]bool)
	doc.Find("h1, h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		phrase := collapse(s.Text())
		key := strings.ToLower(phrase)
		if phrase != "" && !seen[key] {
			seen[key] = true
			out.KeyPhrases = append(out.KeyPhrases, phrase)
		}
		return len(out.KeyPhrases) < maxKeyPhrases
	})

	return out, nil
}

// metaContent returns the content of the first meta tag whose name or
// property matches one of names, in order of preference.
func metaContent(doc *goquery.Document, names ...string) string {
	metas := doc.Find("meta")
	for _, name := range names {
		var found string
		metas.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			key := s.AttrOr("name", s.AttrOr("property", ""))
			if !strings.EqualFold(key, name) {
				return true
			}
			found = collapse(s.AttrOr("content", ""))
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
