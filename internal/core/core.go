package core

import "time"

// Flashcard is a single question/answer study pair generated for an article.
type Flashcard struct {
	Question string `json:"question"` // The prompt side of the card
	Answer   string `json:"answer"`   // Short answer (1-3 sentences)
}

// Insights represents the generator's output bundle for one piece of content.
type Insights struct {
	Flashcards []Flashcard `json:"flashcards"` // 5-10 Q&A pairs depending on content length
	Reflection string      `json:"reflection"` // One reflection question; generated but not persisted
	Tags       []string    `json:"tags"`       // 3-5 short lowercase topical tags
	Summary    string      `json:"summary"`    // 2-3 sentence neutral summary
}

// RawInsights carries the full AI bundle from an extraction forward to a
// subsequent persist call so the pipeline does not scrape or generate twice.
type RawInsights struct {
	Body          string      `json:"body"`
	Flashcards    []Flashcard `json:"flashcards"`
	GeneratedTags []string    `json:"generatedTags"`
	Images        []string    `json:"images"`
}

// Extraction is the result of running the ingestion pipeline's extract step.
type Extraction struct {
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	Description string       `json:"description"`
	Summary     string       `json:"summary"`
	Tags        string       `json:"tags"` // Comma-joined generated tags, form-friendly
	RawInsights *RawInsights `json:"rawInsights,omitempty"`
}

// ArticleDraft is the user-shaped input to PersistArticle. Tags is a
// comma-separated string exactly as typed into the form.
type ArticleDraft struct {
	URL            string       `json:"url"`
	Title          string       `json:"title"`
	Author         string       `json:"author"`
	Description    string       `json:"description"`
	Summary        string       `json:"aiSummary"`
	Tags           string       `json:"tags"`
	SelectedImages []string     `json:"selectedImages,omitempty"` // User-chosen subset of extracted images
	RawInsights    *RawInsights `json:"rawInsights,omitempty"`
}

// Article is a persisted record representing one saved web page plus its
// derived AI artifacts. Owned by exactly one user.
type Article struct {
	ID            string      `json:"id"`
	URL           string      `json:"url"`
	Title         string      `json:"title"`
	Author        string      `json:"author,omitempty"`
	Description   string      `json:"description,omitempty"`
	AISummary     string      `json:"aiSummary,omitempty"`
	Body          string      `json:"body,omitempty"` // Stored but not surfaced in edit forms
	Tags          []string    `json:"tags"`
	Images        []string    `json:"images,omitempty"` // Only the user-selected subset
	Flashcards    []Flashcard `json:"flashcards"`
	SearchContent string      `json:"-"` // Derived lower-cased search blob, never served
	UserID        string      `json:"userId"`
	CreationTime  time.Time   `json:"creationTime"` // System-assigned at insert, immutable
}

// ArticlePatch is a partial update; nil fields are left untouched.
type ArticlePatch struct {
	Title       *string  `json:"title,omitempty"`
	Author      *string  `json:"author,omitempty"`
	Description *string  `json:"description,omitempty"`
	AISummary   *string  `json:"aiSummary,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// SearchPage is one page of cursor-paginated search results.
type SearchPage struct {
	Page           []Article `json:"page"`
	IsDone         bool      `json:"isDone"`
	ContinueCursor string    `json:"continueCursor,omitempty"`
}

// PaginationOpts controls forward-only cursor pagination.
type PaginationOpts struct {
	Cursor   string `json:"cursor,omitempty"`
	NumItems int    `json:"numItems"`
}

// User is a registered account. The password is stored as a bcrypt hash only.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name,omitempty"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Session is the resolved identity for one request. It is passed explicitly
// into every pipeline and store call; a nil session means unauthenticated.
type Session struct {
	Subject string `json:"subject"` // Stable user id; ownership boundary for every read/write
	Email   string `json:"email"`
}
