// Package pipeline orchestrates article ingestion: scrape a URL, generate
// (or reuse cached) insights, reconcile tags, and persist the article.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"notulio/internal/cache"
	"notulio/internal/core"
	"notulio/internal/insights"
	"notulio/internal/logger"
	"notulio/internal/scrape"
	"notulio/internal/store"
)

// scrapeFormats is what every extraction requests from the scraping boundary.
var scrapeFormats = []string{scrape.FormatSummary, scrape.FormatMarkdown, scrape.FormatImages}

// ArticleCreator is the slice of the store the pipeline needs.
type ArticleCreator interface {
	CreateArticle(ctx context.Context, sess *core.Session, article core.Article) (string, error)
}

// Pipeline turns a bare URL (plus optional user overrides) into a persisted
// article. All collaborators are injected.
type Pipeline struct {
	extractor scrape.Extractor
	generator insights.Generator
	cache     cache.Cache
	store     ArticleCreator
	log       *slog.Logger
}

// New creates a pipeline.
func New(extractor scrape.Extractor, generator insights.Generator, insightCache cache.Cache, articles ArticleCreator) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		generator: generator,
		cache:     insightCache,
		store:     articles,
		log:       logger.Get(),
	}
}

// ExtractMetadata scrapes the URL, generates (or reuses cached) insights, and
// returns the form-ready extraction. Scrape and generation failures propagate
// to the caller.
func (p *Pipeline) ExtractMetadata(ctx context.Context, sess *core.Session, url string) (*core.Extraction, error) {
	if sess == nil {
		return nil, store.ErrNotAuthenticated
	}
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("url is required")
	}

	meta, err := p.extractor.Extract(ctx, url, scrapeFormats)
	if err != nil {
		return nil, fmt.Errorf("metadata extraction failed: %w", err)
	}

	ins, err := p.cachedInsights(ctx, meta.Title, meta.Description, meta.Body)
	if err != nil {
		return nil, err
	}

	summary := meta.Summary
	if summary == "" {
		summary = ins.Summary
	}

	return &core.Extraction{
		Title:       meta.Title,
		Author:      meta.Author,
		Description: meta.Description,
		Summary:     summary,
		Tags:        strings.Join(ins.Tags, ", "),
		RawInsights: &core.RawInsights{
			Body:          meta.Body,
			Flashcards:    ins.Flashcards,
			GeneratedTags: ins.Tags,
			Images:        meta.Images,
		},
	}, nil
}

// PersistOptions controls the persist step.
type PersistOptions struct {
	SkipAIProcessing bool `json:"skipAiProcessing"`
}

// PersistResult is the discriminated outcome of PersistArticle. A store
// failure is reported here rather than swallowed; Persisted is false and Err
// carries the cause.
type PersistResult struct {
	ID        string `json:"id,omitempty"`
	Persisted bool   `json:"persisted"`
	Err       error  `json:"-"`
}

// PersistArticle reconciles tags, fills in AI artifacts, and creates the
// article record. Extraction or generation failures propagate as errors;
// persistence failures are logged and returned in the result.
func (p *Pipeline) PersistArticle(ctx context.Context, sess *core.Session, draft core.ArticleDraft, opts PersistOptions) (*PersistResult, error) {
	if sess == nil {
		return nil, store.ErrNotAuthenticated
	}

	userTags := SplitTags(draft.Tags)

	var generatedTags []string
	var flashcards []core.Flashcard
	var body string
	summary := draft.Summary

	switch {
	case draft.RawInsights != nil:
		// Reuse the bundle from a prior extraction; no second scrape or
		// generation round trip.
		generatedTags = draft.RawInsights.GeneratedTags
		flashcards = draft.RawInsights.Flashcards
		body = draft.RawInsights.Body
	case !opts.SkipAIProcessing:
		meta, err := p.extractor.Extract(ctx, draft.URL, scrapeFormats)
		if err != nil {
			return nil, fmt.Errorf("metadata extraction failed: %w", err)
		}
		ins, err := p.cachedInsights(ctx, draft.Title, draft.Description, meta.Body)
		if err != nil {
			return nil, err
		}
		generatedTags = ins.Tags
		flashcards = ins.Flashcards
		body = meta.Body
		if summary == "" {
			summary = meta.Summary
		}
	}

	article := core.Article{
		URL:         draft.URL,
		Title:       draft.Title,
		Author:      draft.Author,
		Description: draft.Description,
		AISummary:   summary,
		Body:        body,
		Tags:        MergeTags(userTags, generatedTags),
		Images:      draft.SelectedImages, // only the user-selected subset, never the full extracted list
		Flashcards:  flashcards,
	}

	id, err := p.store.CreateArticle(ctx, sess, article)
	if err != nil {
		if errors.Is(err, store.ErrNotAuthenticated) {
			return nil, err
		}
		p.log.Error("failed to persist article", "url", draft.URL, "error", err.Error())
		return &PersistResult{Persisted: false, Err: err}, nil
	}

	return &PersistResult{ID: id, Persisted: true}, nil
}

// cachedInsights returns memoized insights for the content key, invoking the
// generator only on a miss.
func (p *Pipeline) cachedInsights(ctx context.Context, title, description, content string) (*core.Insights, error) {
	key := cache.Key(title, description, content)
	if ins, ok := p.cache.Get(key); ok {
		return ins, nil
	}

	ins, err := p.generator.Generate(ctx, title, description, content)
	if err != nil {
		return nil, fmt.Errorf("insight generation failed: %w", err)
	}

	p.cache.Set(key, ins)
	return ins, nil
}

// SplitTags turns a comma-separated tag string into trimmed, non-empty tags.
func SplitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// MergeTags unions user and generated tags, dropping exact duplicates while
// keeping first-seen order. Comparison is case-sensitive: "AI" and "ai" are
// distinct tags.
func MergeTags(userTags, generatedTags []string) []string {
	merged := make([]string, 0, len(userTags)+len(generatedTags))
	seen := make(map[string]bool, len(userTags)+len(generatedTags))
	for _, tag := range append(append([]string{}, userTags...), generatedTags...) {
		if !seen[tag] {
			seen[tag] = true
			merged = append(merged, tag)
		}
	}
	return merged
}
