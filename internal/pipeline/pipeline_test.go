package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"notulio/internal/cache"
	"notulio/internal/core"
	"notulio/internal/scrape"
	"notulio/internal/store"
)

type fakeExtractor struct {
	meta  *scrape.Metadata
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, url string, formats []string) (*scrape.Metadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.meta, nil
}

type fakeGenerator struct {
	insights *core.Insights
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, title, description, content string) (*core.Insights, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.insights, nil
}

type fakeCreator struct {
	articles []core.Article
	err      error
}

func (f *fakeCreator) CreateArticle(ctx context.Context, sess *core.Session, article core.Article) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.articles = append(f.articles, article)
	return fmt.Sprintf("article-%d", len(f.articles)), nil
}

func testSession() *core.Session {
	return &core.Session{Subject: "user-1", Email: "user@example.com"}
}

func testMetadata() *scrape.Metadata {
	return &scrape.Metadata{
		Title:       "Go Concurrency Patterns",
		Author:      "Rob Pike",
		Description: "Patterns for structuring concurrent Go programs",
		Summary:     "Scraper summary.",
		Body:        "Goroutines and channels form the basis of Go concurrency.",
		Images:      []string{"https://example.com/a.png", "https://example.com/b.png"},
	}
}

func testGenerated() *core.Insights {
	return &core.Insights{
		Flashcards: []core.Flashcard{
			{Question: "What is a goroutine?", Answer: "A lightweight thread managed by the Go runtime."},
		},
		Reflection: "How do channels compare to shared memory?",
		Tags:       []string{"go", "concurrency"},
		Summary:    "Generated summary.",
	}
}

func newTestPipeline(ext *fakeExtractor, gen *fakeGenerator, creator *fakeCreator) *Pipeline {
	return New(ext, gen, cache.New(16, time.Hour), creator)
}

func TestExtractMetadata(t *testing.T) {
	ext := &fakeExtractor{meta: testMetadata()}
	gen := &fakeGenerator{insights: testGenerated()}
	p := newTestPipeline(ext, gen, &fakeCreator{})

	extraction, err := p.ExtractMetadata(context.Background(), testSession(), "https://example.com/post")
	if err != nil {
		t.Fatalf("ExtractMetadata failed: %v", err)
	}

	if extraction.Title != "Go Concurrency Patterns" {
		t.Errorf("Expected scraped title, got %q", extraction.Title)
	}
	if extraction.Author != "Rob Pike" {
		t.Errorf("Expected scraped author, got %q", extraction.Author)
	}
	if extraction.Summary != "Scraper summary." {
		t.Errorf("Expected scraper summary to win, got %q", extraction.Summary)
	}
	if extraction.Tags != "go, concurrency" {
		t.Errorf("Expected comma-joined tags, got %q", extraction.Tags)
	}

	if extraction.RawInsights == nil {
		t.Fatal("Expected raw insights to be carried on the extraction")
	}
	if extraction.RawInsights.Body != testMetadata().Body {
		t.Error("Raw insights should carry the scraped body")
	}
	if len(extraction.RawInsights.Flashcards) != 1 {
		t.Errorf("Expected 1 flashcard, got %d", len(extraction.RawInsights.Flashcards))
	}
	if !reflect.DeepEqual(extraction.RawInsights.GeneratedTags, []string{"go", "concurrency"}) {
		t.Errorf("Unexpected generated tags: %v", extraction.RawInsights.GeneratedTags)
	}
	if len(extraction.RawInsights.Images) != 2 {
		t.Errorf("Expected 2 extracted images, got %d", len(extraction.RawInsights.Images))
	}
}

func TestExtractMetadata_NilSession(t *testing.T) {
	p := newTestPipeline(&fakeExtractor{meta: testMetadata()}, &fakeGenerator{insights: testGenerated()}, &fakeCreator{})

	_, err := p.ExtractMetadata(context.Background(), nil, "https://example.com")
	if !errors.Is(err, store.ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
}

func TestExtractMetadata_EmptyURL(t *testing.T) {
	p := newTestPipeline(&fakeExtractor{meta: testMetadata()}, &fakeGenerator{insights: testGenerated()}, &fakeCreator{})

	if _, err := p.ExtractMetadata(context.Background(), testSession(), "  "); err == nil {
		t.Error("Expected error for blank URL")
	}
}

func TestExtractMetadata_ScrapeFailure(t *testing.T) {
	ext := &fakeExtractor{err: errors.New("fetch failed")}
	p := newTestPipeline(ext, &fakeGenerator{insights: testGenerated()}, &fakeCreator{})

	if _, err := p.ExtractMetadata(context.Background(), testSession(), "https://example.com"); err == nil {
		t.Error("Expected scrape failure to propagate")
	}
}

func TestExtractMetadata_SummaryFallsBackToGenerated(t *testing.T) {
	meta := testMetadata()
	meta.Summary = ""
	p := newTestPipeline(&fakeExtractor{meta: meta}, &fakeGenerator{insights: testGenerated()}, &fakeCreator{})

	extraction, err := p.ExtractMetadata(context.Background(), testSession(), "https://example.com")
	if err != nil {
		t.Fatalf("ExtractMetadata failed: %v", err)
	}
	if extraction.Summary != "Generated summary." {
		t.Errorf("Expected generated summary fallback, got %q", extraction.Summary)
	}
}

func TestExtractMetadata_CacheAvoidsRegeneration(t *testing.T) {
	ext := &fakeExtractor{meta: testMetadata()}
	gen := &fakeGenerator{insights: testGenerated()}
	p := newTestPipeline(ext, gen, &fakeCreator{})

	for i := 0; i < 3; i++ {
		if _, err := p.ExtractMetadata(context.Background(), testSession(), "https://example.com/post"); err != nil {
			t.Fatalf("ExtractMetadata failed: %v", err)
		}
	}

	if gen.calls != 1 {
		t.Errorf("Expected a single generation for identical content, got %d", gen.calls)
	}
	if ext.calls != 3 {
		t.Errorf("Expected scrape on every extraction, got %d", ext.calls)
	}
}

func TestPersistArticle_ReusesRawInsights(t *testing.T) {
	ext := &fakeExtractor{meta: testMetadata()}
	gen := &fakeGenerator{insights: testGenerated()}
	creator := &fakeCreator{}
	p := newTestPipeline(ext, gen, creator)

	draft := core.ArticleDraft{
		URL:     "https://example.com/post",
		Title:   "Go Concurrency Patterns",
		Summary: "User summary",
		Tags:    "ai, AI , tech",
		RawInsights: &core.RawInsights{
			Body:          "scraped body",
			Flashcards:    testGenerated().Flashcards,
			GeneratedTags: []string{"news", "tech", "ai"},
		},
	}

	result, err := p.PersistArticle(context.Background(), testSession(), draft, PersistOptions{})
	if err != nil {
		t.Fatalf("PersistArticle failed: %v", err)
	}
	if !result.Persisted || result.ID == "" {
		t.Fatalf("Expected persisted result, got %+v", result)
	}

	if ext.calls != 0 || gen.calls != 0 {
		t.Errorf("Expected no scrape or generation when raw insights are supplied, got %d/%d", ext.calls, gen.calls)
	}

	saved := creator.articles[0]
	if saved.Body != "scraped body" {
		t.Errorf("Expected carried body, got %q", saved.Body)
	}
	if saved.AISummary != "User summary" {
		t.Errorf("Expected user summary, got %q", saved.AISummary)
	}

	// Case-sensitive union, user tags first, duplicates dropped.
	expectedTags := []string{"ai", "AI", "tech", "news"}
	if !reflect.DeepEqual(saved.Tags, expectedTags) {
		t.Errorf("Expected tags %v, got %v", expectedTags, saved.Tags)
	}
}

func TestPersistArticle_RescrapesWithoutRawInsights(t *testing.T) {
	ext := &fakeExtractor{meta: testMetadata()}
	gen := &fakeGenerator{insights: testGenerated()}
	creator := &fakeCreator{}
	p := newTestPipeline(ext, gen, creator)

	draft := core.ArticleDraft{URL: "https://example.com/post", Title: "Go Concurrency Patterns"}

	result, err := p.PersistArticle(context.Background(), testSession(), draft, PersistOptions{})
	if err != nil {
		t.Fatalf("PersistArticle failed: %v", err)
	}
	if !result.Persisted {
		t.Fatal("Expected article to be persisted")
	}

	if ext.calls != 1 || gen.calls != 1 {
		t.Errorf("Expected one scrape and one generation, got %d/%d", ext.calls, gen.calls)
	}

	saved := creator.articles[0]
	if saved.AISummary != "Scraper summary." {
		t.Errorf("Expected scraper summary fallback, got %q", saved.AISummary)
	}
	if len(saved.Flashcards) != 1 {
		t.Errorf("Expected generated flashcards, got %d", len(saved.Flashcards))
	}
}

func TestPersistArticle_SkipAIProcessing(t *testing.T) {
	ext := &fakeExtractor{meta: testMetadata()}
	gen := &fakeGenerator{insights: testGenerated()}
	creator := &fakeCreator{}
	p := newTestPipeline(ext, gen, creator)

	draft := core.ArticleDraft{URL: "https://example.com", Title: "T", Tags: "manual"}

	result, err := p.PersistArticle(context.Background(), testSession(), draft, PersistOptions{SkipAIProcessing: true})
	if err != nil {
		t.Fatalf("PersistArticle failed: %v", err)
	}
	if !result.Persisted {
		t.Fatal("Expected article to be persisted")
	}

	if ext.calls != 0 || gen.calls != 0 {
		t.Errorf("Expected no scrape or generation when AI is skipped, got %d/%d", ext.calls, gen.calls)
	}

	saved := creator.articles[0]
	if len(saved.Flashcards) != 0 {
		t.Errorf("Expected no flashcards, got %d", len(saved.Flashcards))
	}
	if !reflect.DeepEqual(saved.Tags, []string{"manual"}) {
		t.Errorf("Expected only user tags, got %v", saved.Tags)
	}
}

func TestPersistArticle_OnlySelectedImagesPersisted(t *testing.T) {
	creator := &fakeCreator{}
	p := newTestPipeline(&fakeExtractor{meta: testMetadata()}, &fakeGenerator{insights: testGenerated()}, creator)

	draft := core.ArticleDraft{
		URL:            "https://example.com",
		Title:          "T",
		SelectedImages: []string{"https://example.com/b.png"},
		RawInsights: &core.RawInsights{
			Flashcards:    testGenerated().Flashcards,
			GeneratedTags: []string{"go"},
			Images:        []string{"https://example.com/a.png", "https://example.com/b.png"},
		},
	}

	if _, err := p.PersistArticle(context.Background(), testSession(), draft, PersistOptions{}); err != nil {
		t.Fatalf("PersistArticle failed: %v", err)
	}

	saved := creator.articles[0]
	if !reflect.DeepEqual(saved.Images, []string{"https://example.com/b.png"}) {
		t.Errorf("Expected only the selected image subset, got %v", saved.Images)
	}
}

func TestPersistArticle_NilSession(t *testing.T) {
	p := newTestPipeline(&fakeExtractor{meta: testMetadata()}, &fakeGenerator{insights: testGenerated()}, &fakeCreator{})

	_, err := p.PersistArticle(context.Background(), nil, core.ArticleDraft{URL: "https://example.com"}, PersistOptions{})
	if !errors.Is(err, store.ErrNotAuthenticated) {
		t.Errorf("Expected ErrNotAuthenticated, got %v", err)
	}
}

func TestPersistArticle_StoreFailureReportedInResult(t *testing.T) {
	storeErr := errors.New("disk full")
	creator := &fakeCreator{err: storeErr}
	p := newTestPipeline(&fakeExtractor{meta: testMetadata()}, &fakeGenerator{insights: testGenerated()}, creator)

	draft := core.ArticleDraft{URL: "https://example.com", Title: "T"}
	result, err := p.PersistArticle(context.Background(), testSession(), draft, PersistOptions{SkipAIProcessing: true})
	if err != nil {
		t.Fatalf("Store failures should not surface as call errors, got %v", err)
	}

	if result.Persisted {
		t.Error("Expected Persisted to be false on store failure")
	}
	if !errors.Is(result.Err, storeErr) {
		t.Errorf("Expected result to carry the store error, got %v", result.Err)
	}
}

func TestPersistArticle_GenerationFailurePropagates(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	p := newTestPipeline(&fakeExtractor{meta: testMetadata()}, gen, &fakeCreator{})

	draft := core.ArticleDraft{URL: "https://example.com", Title: "T"}
	if _, err := p.PersistArticle(context.Background(), testSession(), draft, PersistOptions{}); err == nil {
		t.Error("Expected generation failure to propagate")
	}
}

func TestSplitTags(t *testing.T) {
	testCases := []struct {
		raw      string
		expected []string
	}{
		{"", []string{}},
		{" , , ", []string{}},
		{"go", []string{"go"}},
		{"go, web , api", []string{"go", "web", "api"}},
		{"ai, AI", []string{"ai", "AI"}},
	}

	for _, tc := range testCases {
		result := SplitTags(tc.raw)
		if !reflect.DeepEqual(result, tc.expected) {
			t.Errorf("SplitTags(%q) = %v, expected %v", tc.raw, result, tc.expected)
		}
	}
}

func TestMergeTags(t *testing.T) {
	merged := MergeTags([]string{"ai", "AI", "tech"}, []string{"news", "tech", "ai"})
	expected := []string{"ai", "AI", "tech", "news"}
	if !reflect.DeepEqual(merged, expected) {
		t.Errorf("MergeTags = %v, expected %v", merged, expected)
	}
}

func TestMergeTags_Empty(t *testing.T) {
	if merged := MergeTags(nil, nil); len(merged) != 0 {
		t.Errorf("Expected empty merge, got %v", merged)
	}
}
