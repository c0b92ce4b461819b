// Package scrape is the metadata-extraction boundary: given a URL it returns
// title/author/description/summary/body/images. The primary implementation
// talks to a Firecrawl-compatible scraping API; a local goquery extractor is
// used when no API key is configured.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Requestable formats for an extraction.
const (
	FormatSummary  = "summary"
	FormatMarkdown = "markdown"
	FormatImages   = "images"
)

// Sentinel defaults for metadata fields the scraper could not produce.
const (
	NoTitle       = "No title found."
	NoAuthor      = "No author found."
	NoDescription = "No description found"
)

// Metadata is the scraper's result for one URL.
type Metadata struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Description string   `json:"description"`
	Summary     string   `json:"summary"`
	Body        string   `json:"body"`
	Images      []string `json:"images"`
}

// Extractor fetches page metadata and content for a URL.
type Extractor interface {
	Extract(ctx context.Context, url string, formats []string) (*Metadata, error)
}

// Client calls a Firecrawl-compatible scrape API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a scrape API client.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Metadata struct {
			Title       string `json:"title"`
			Author      string `json:"author"`
			Description string `json:"description"`
		} `json:"metadata"`
		Summary  string   `json:"summary"`
		Markdown string   `json:"markdown"`
		Images   []string `json:"images"`
	} `json:"data"`
}

// Extract scrapes url and returns its metadata with sentinel defaults applied
// to any missing field.
func (c *Client) Extract(ctx context.Context, url string, formats []string) (*Metadata, error) {
	body, err := json.Marshal(scrapeRequest{URL: url, Formats: formats})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape request failed for %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scrape response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape request for %s returned status %d", url, resp.StatusCode)
	}

	var parsed scrapeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse scrape response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("scrape failed for %s: %s", url, parsed.Error)
	}

	return applyDefaults(&Metadata{
		Title:       parsed.Data.Metadata.Title,
		Author:      parsed.Data.Metadata.Author,
		Description: parsed.Data.Metadata.Description,
		Summary:     parsed.Data.Summary,
		Body:        parsed.Data.Markdown,
		Images:      parsed.Data.Images,
	}), nil
}

// applyDefaults replaces empty metadata fields with their sentinel strings
// and normalizes a nil image list.
func applyDefaults(m *Metadata) *Metadata {
	if m.Title == "" {
		m.Title = NoTitle
	}
	if m.Author == "" {
		m.Author = NoAuthor
	}
	if m.Description == "" {
		m.Description = NoDescription
	}
	if m.Images == nil {
		m.Images = []string{}
	}
	return m
}
