package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"notulio/internal/core"
)

// Store is the SQLite-backed article and user store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "notulio.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		author TEXT,
		description TEXT,
		ai_summary TEXT,
		body TEXT,
		tags TEXT NOT NULL,
		images TEXT,
		flashcards TEXT NOT NULL,
		search_content TEXT NOT NULL,
		user_id TEXT NOT NULL,
		creation_time DATETIME NOT NULL
	);`

	userIndex := `CREATE INDEX IF NOT EXISTS idx_articles_user ON articles (user_id, creation_time DESC);`

	// Full-text index over the derived search blob, filtered per user.
	// Kept in lockstep with the articles table inside every write transaction.
	searchTable := `
	CREATE VIRTUAL TABLE IF NOT EXISTS articles_search USING fts5(
		article_id UNINDEXED,
		user_id UNINDEXED,
		search_content
	);`

	usersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT,
		password_hash TEXT NOT NULL,
		email_verified INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);`

	tokensTable := `
	CREATE TABLE IF NOT EXISTS auth_tokens (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		purpose TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users (id)
	);`

	stmts := []string{articlesTable, userIndex, searchTable, usersTable, tokensTable}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BuildSearchContent derives the lower-cased search blob from the searchable
// fields. Empty contributors are dropped before joining.
func BuildSearchContent(title, description, author string, tags []string) string {
	parts := make([]string, 0, 3+len(tags))
	for _, p := range []string{title, description, author} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	for _, tag := range tags {
		if tag != "" {
			parts = append(parts, tag)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// CreateArticle inserts a new article owned by the session's user. It stamps
// the id, user id, creation time, and derived search content, and returns the
// new article id.
func (s *Store) CreateArticle(ctx context.Context, sess *core.Session, article core.Article) (string, error) {
	if sess == nil {
		return "", ErrNotAuthenticated
	}

	article.ID = uuid.NewString()
	article.UserID = sess.Subject
	article.CreationTime = time.Now().UTC()
	article.SearchContent = BuildSearchContent(article.Title, article.Description, article.Author, article.Tags)

	if article.Tags == nil {
		article.Tags = []string{}
	}
	if article.Flashcards == nil {
		article.Flashcards = []core.Flashcard{}
	}

	tagsJSON, err := json.Marshal(article.Tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags: %w", err)
	}
	imagesJSON, err := json.Marshal(article.Images)
	if err != nil {
		return "", fmt.Errorf("failed to marshal images: %w", err)
	}
	flashcardsJSON, err := json.Marshal(article.Flashcards)
	if err != nil {
		return "", fmt.Errorf("failed to marshal flashcards: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO articles (id, url, title, author, description, ai_summary, body, tags, images, flashcards, search_content, user_id, creation_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID, article.URL, article.Title, article.Author, article.Description,
		article.AISummary, article.Body, string(tagsJSON), string(imagesJSON),
		string(flashcardsJSON), article.SearchContent, article.UserID, article.CreationTime,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert article: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO articles_search (article_id, user_id, search_content) VALUES (?, ?, ?)`,
		article.ID, article.UserID, article.SearchContent,
	)
	if err != nil {
		return "", fmt.Errorf("failed to index article: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit article: %w", err)
	}

	return article.ID, nil
}

// GetArticle returns the article with the given id. A missing record yields
// ErrNotFound; a record owned by another user yields ErrUnauthorized.
func (s *Store) GetArticle(ctx context.Context, sess *core.Session, id string) (*core.Article, error) {
	if sess == nil {
		return nil, ErrNotAuthenticated
	}

	article, err := s.fetchArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	if article.UserID != sess.Subject {
		return nil, ErrUnauthorized
	}
	return article, nil
}

// UpdateArticle applies a partial update to an owned article. The search blob
// is recomputed in the same transaction whenever any contributing field is
// among the updated ones.
func (s *Store) UpdateArticle(ctx context.Context, sess *core.Session, id string, patch core.ArticlePatch) error {
	if sess == nil {
		return ErrNotAuthenticated
	}

	article, err := s.ownedArticle(ctx, sess, id)
	if err != nil {
		return err
	}

	if patch.Title != nil {
		article.Title = *patch.Title
	}
	if patch.Author != nil {
		article.Author = *patch.Author
	}
	if patch.Description != nil {
		article.Description = *patch.Description
	}
	if patch.AISummary != nil {
		article.AISummary = *patch.AISummary
	}
	if patch.Tags != nil {
		article.Tags = patch.Tags
	}
	if patch.Images != nil {
		article.Images = patch.Images
	}

	searchChanged := patch.Title != nil || patch.Description != nil || patch.Author != nil || patch.Tags != nil
	if searchChanged {
		article.SearchContent = BuildSearchContent(article.Title, article.Description, article.Author, article.Tags)
	}

	tagsJSON, err := json.Marshal(article.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	imagesJSON, err := json.Marshal(article.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		UPDATE articles
		SET title = ?, author = ?, description = ?, ai_summary = ?, tags = ?, images = ?, search_content = ?
		WHERE id = ?`,
		article.Title, article.Author, article.Description, article.AISummary,
		string(tagsJSON), string(imagesJSON), article.SearchContent, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}

	if searchChanged {
		_, err = tx.ExecContext(ctx, `
			UPDATE articles_search SET search_content = ? WHERE article_id = ?`,
			article.SearchContent, id,
		)
		if err != nil {
			return fmt.Errorf("failed to reindex article: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}

	return nil
}

// DeleteArticle removes an owned article and its search index row.
func (s *Store) DeleteArticle(ctx context.Context, sess *core.Session, id string) error {
	if sess == nil {
		return ErrNotAuthenticated
	}

	if _, err := s.ownedArticle(ctx, sess, id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM articles_search WHERE article_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete article index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	return nil
}

// SearchArticles returns one page of the owner's articles. An empty query
// lists newest-first; a non-empty query runs a full-text match restricted to
// the owner. Pagination is cursor-based and forward-only.
func (s *Store) SearchArticles(ctx context.Context, sess *core.Session, query string, opts core.PaginationOpts) (*core.SearchPage, error) {
	if sess == nil {
		// Mirror the listing contract: an unauthenticated search is an empty,
		// finished page rather than an error.
		return &core.SearchPage{Page: []core.Article{}, IsDone: true}, nil
	}

	limit := opts.NumItems
	if limit <= 0 {
		limit = 20
	}

	if strings.TrimSpace(query) == "" {
		return s.listArticles(ctx, sess.Subject, opts.Cursor, limit)
	}
	return s.searchArticlesFTS(ctx, sess.Subject, query, opts.Cursor, limit)
}

func (s *Store) listArticles(ctx context.Context, userID, cursor string, limit int) (*core.SearchPage, error) {
	afterTime, afterID, err := decodeListCursor(cursor)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if afterID == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, url, title, author, description, ai_summary, body, tags, images, flashcards, search_content, user_id, creation_time
			FROM articles WHERE user_id = ?
			ORDER BY creation_time DESC, id DESC LIMIT ?`,
			userID, limit+1,
		)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, url, title, author, description, ai_summary, body, tags, images, flashcards, search_content, user_id, creation_time
			FROM articles WHERE user_id = ? AND (creation_time < ? OR (creation_time = ? AND id < ?))
			ORDER BY creation_time DESC, id DESC LIMIT ?`,
			userID, afterTime, afterTime, afterID, limit+1,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}

	page := &core.SearchPage{Page: articles, IsDone: true}
	if len(articles) > limit {
		last := articles[limit-1]
		page.Page = articles[:limit]
		page.IsDone = false
		page.ContinueCursor = encodeListCursor(last.CreationTime, last.ID)
	}
	return page, nil
}

func (s *Store) searchArticlesFTS(ctx context.Context, userID, query, cursor string, limit int) (*core.SearchPage, error) {
	offset, err := decodeOffsetCursor(cursor)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.url, a.title, a.author, a.description, a.ai_summary, a.body, a.tags, a.images, a.flashcards, a.search_content, a.user_id, a.creation_time
		FROM articles_search s
		JOIN articles a ON a.id = s.article_id
		WHERE s.user_id = ? AND articles_search MATCH ?
		ORDER BY rank LIMIT ? OFFSET ?`,
		userID, ftsQuery(query), limit+1, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search articles: %w", err)
	}
	defer rows.Close()

	articles, err := scanArticles(rows)
	if err != nil {
		return nil, err
	}

	page := &core.SearchPage{Page: articles, IsDone: true}
	if len(articles) > limit {
		page.Page = articles[:limit]
		page.IsDone = false
		page.ContinueCursor = encodeOffsetCursor(offset + limit)
	}
	return page, nil
}

// ftsQuery quotes each whitespace-separated term so user input cannot break
// the FTS5 match syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	for i, term := range terms {
		terms[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

func (s *Store) ownedArticle(ctx context.Context, sess *core.Session, id string) (*core.Article, error) {
	article, err := s.fetchArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	if article.UserID != sess.Subject {
		return nil, ErrUnauthorized
	}
	return article, nil
}

func (s *Store) fetchArticle(ctx context.Context, id string) (*core.Article, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, title, author, description, ai_summary, body, tags, images, flashcards, search_content, user_id, creation_time
		FROM articles WHERE id = ?`, id)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article: %w", err)
	}
	return article, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*core.Article, error) {
	var article core.Article
	var author, description, aiSummary, body sql.NullString
	var tagsJSON, imagesJSON, flashcardsJSON sql.NullString

	err := row.Scan(
		&article.ID, &article.URL, &article.Title, &author, &description,
		&aiSummary, &body, &tagsJSON, &imagesJSON, &flashcardsJSON,
		&article.SearchContent, &article.UserID, &article.CreationTime,
	)
	if err != nil {
		return nil, err
	}

	article.Author = author.String
	article.Description = description.String
	article.AISummary = aiSummary.String
	article.Body = body.String

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &article.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if imagesJSON.Valid && imagesJSON.String != "" && imagesJSON.String != "null" {
		if err := json.Unmarshal([]byte(imagesJSON.String), &article.Images); err != nil {
			return nil, fmt.Errorf("failed to unmarshal images: %w", err)
		}
	}
	if flashcardsJSON.Valid && flashcardsJSON.String != "" {
		if err := json.Unmarshal([]byte(flashcardsJSON.String), &article.Flashcards); err != nil {
			return nil, fmt.Errorf("failed to unmarshal flashcards: %w", err)
		}
	}

	return &article, nil
}

func scanArticles(rows *sql.Rows) ([]core.Article, error) {
	articles := []core.Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}
	return articles, nil
}

// Cursor encoding. List pages use a keyset cursor on (creation_time, id);
// full-text pages use a plain offset since FTS rank has no stable keyset.

func encodeListCursor(t time.Time, id string) string {
	raw := fmt.Sprintf("t|%d|%s", t.UnixNano(), id)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeListCursor(cursor string) (time.Time, string, error) {
	if cursor == "" {
		return time.Time{}, "", nil
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 || parts[0] != "t" {
		return time.Time{}, "", fmt.Errorf("invalid cursor format")
	}
	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	return time.Unix(0, nanos).UTC(), parts[2], nil
}

func encodeOffsetCursor(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte("o|" + strconv.Itoa(offset)))
}

func decodeOffsetCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[0] != "o" {
		return 0, fmt.Errorf("invalid cursor format")
	}
	offset, err := strconv.Atoi(parts[1])
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid cursor offset")
	}
	return offset, nil
}

// CountArticles returns the total number of stored articles. Used by the
// status endpoint.
func (s *Store) CountArticles(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}
