package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Local extracts metadata directly from the page HTML. It is the fallback
// when no scraping API key is configured; its body output is plain text
// rather than markdown.
type Local struct {
	httpClient *http.Client
}

// NewLocal creates a local extractor.
func NewLocal(timeout time.Duration) *Local {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Local{httpClient: &http.Client{Timeout: timeout}}
}

// Extract fetches the page and pulls metadata and main content out of the
// HTML. The formats argument is accepted for interface compatibility; the
// local extractor always produces markdown-ish text and images, never a
// scraper summary.
func (l *Local) Extract(ctx context.Context, pageURL string, formats []string) (*Metadata, error) {
	parsed, err := url.ParseRequestURI(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", pageURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", pageURL, err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL %s: status code %d", pageURL, resp.StatusCode)
	}

	htmlBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(htmlBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}

	return applyDefaults(&Metadata{
		Title:       extractTitle(doc),
		Author:      extractAuthor(doc),
		Description: extractDescription(doc),
		Body:        extractBody(doc),
		Images:      extractImages(doc, parsed),
	}), nil
}

// extractTitle tries the title tag, then OpenGraph, then the first h1.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content"); ogTitle != "" {
		return strings.TrimSpace(ogTitle)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return ""
}

func extractAuthor(doc *goquery.Document) string {
	if author, _ := doc.Find("meta[name='author']").Attr("content"); author != "" {
		return strings.TrimSpace(author)
	}
	if author, _ := doc.Find("meta[property='article:author']").Attr("content"); author != "" {
		return strings.TrimSpace(author)
	}
	return ""
}

func extractDescription(doc *goquery.Document) string {
	if desc, _ := doc.Find("meta[name='description']").Attr("content"); desc != "" {
		return strings.TrimSpace(desc)
	}
	if desc, _ := doc.Find("meta[property='og:description']").Attr("content"); desc != "" {
		return strings.TrimSpace(desc)
	}
	return ""
}

// extractBody pulls the main textual content and strips boilerplate.
func extractBody(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner").Remove()

	var textBuilder strings.Builder
	mainContentSelectors := []string{
		"article", "main", ".main-content", ".entry-content", ".post-content", ".post-body", ".article-body",
		"[role='main']",
		".content", "#content",
	}

	found := false
	for _, selector := range mainContentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			s.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
				text := strings.TrimSpace(item.Text())
				if text != "" {
					textBuilder.WriteString(text)
					textBuilder.WriteString("\n\n")
				}
			})
		})
		if textBuilder.Len() > 0 {
			found = true
			break
		}
	}

	if !found {
		// No recognizable content container; fall back to all paragraphs.
		doc.Find("body p").Each(func(_ int, item *goquery.Selection) {
			text := strings.TrimSpace(item.Text())
			if text != "" {
				textBuilder.WriteString(text)
				textBuilder.WriteString("\n\n")
			}
		})
	}

	return strings.TrimSpace(textBuilder.String())
}

// extractImages collects og:image plus inline img sources, resolved against
// the page URL and deduplicated in document order.
func extractImages(doc *goquery.Document, base *url.URL) []string {
	images := []string{}
	seen := map[string]bool{}

	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref).String()
		if !seen[resolved] {
			seen[resolved] = true
			images = append(images, resolved)
		}
	}

	if og, ok := doc.Find("meta[property='og:image']").Attr("content"); ok {
		add(og)
	}
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
		}
	})

	return images
}
