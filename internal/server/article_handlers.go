package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"notulio/internal/core"
	"notulio/internal/pipeline"
	"notulio/internal/store"
)

type extractRequest struct {
	URL string `json:"url"`
}

type createArticleRequest struct {
	core.ArticleDraft
	SkipAIProcessing bool `json:"skipAiProcessing"`
}

// handleExtractMetadata handles POST /api/articles/extract
func (s *Server) handleExtractMetadata(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		s.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	sess := sessionFromContext(r.Context())
	extraction, err := s.pipeline.ExtractMetadata(r.Context(), sess, req.URL)
	if err != nil {
		if errors.Is(err, store.ErrNotAuthenticated) {
			s.respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		// Extraction failures surface to the submitting form as an inline
		// error state.
		s.log.Error("metadata extraction failed", "url", req.URL, "error", err.Error())
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, extraction)
}

// handleCreateArticle handles POST /api/articles
func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var req createArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" || req.Title == "" {
		s.respondError(w, http.StatusBadRequest, "url and title are required")
		return
	}

	sess := sessionFromContext(r.Context())
	result, err := s.pipeline.PersistArticle(r.Context(), sess, req.ArticleDraft, pipeline.PersistOptions{
		SkipAIProcessing: req.SkipAIProcessing,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotAuthenticated) {
			s.respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		s.log.Error("article ingestion failed", "url", req.URL, "error", err.Error())
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	if !result.Persisted {
		s.respondError(w, http.StatusInternalServerError, "failed to save article")
		return
	}

	s.respondJSON(w, http.StatusCreated, result)
}

// handleSearchArticles handles GET /api/articles?q=&cursor=&limit=
func (s *Server) handleSearchArticles(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	opts := core.PaginationOpts{Cursor: r.URL.Query().Get("cursor")}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 || n > 100 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.NumItems = n
	}

	page, err := s.store.SearchArticles(r.Context(), sess, r.URL.Query().Get("q"), opts)
	if err != nil {
		s.log.Error("article search failed", "error", err.Error())
		s.respondError(w, http.StatusBadRequest, "search failed")
		return
	}

	s.respondJSON(w, http.StatusOK, page)
}

// handleGetArticle handles GET /api/articles/{id}
func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	article, err := s.store.GetArticle(r.Context(), sess, id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, article)
}

// handleUpdateArticle handles PATCH /api/articles/{id}
func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	var patch core.ArticlePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.store.UpdateArticle(r.Context(), sess, id, patch); err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// handleDeleteArticle handles DELETE /api/articles/{id}
func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteArticle(r.Context(), sess, id); err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// respondStoreError maps store errors onto the HTTP taxonomy: authentication
// failures are 401, ownership mismatches 403, missing records 404.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotAuthenticated):
		s.respondError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, store.ErrUnauthorized):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error("store operation failed", "error", err.Error())
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}
