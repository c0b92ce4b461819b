package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"notulio/internal/auth"
	"notulio/internal/config"
	"notulio/internal/logger"
	"notulio/internal/pipeline"
	"notulio/internal/store"
)

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	store      *store.Store
	auth       *auth.Service
	pipeline   *pipeline.Pipeline
	config     config.Server
	log        *slog.Logger
}

// New creates a new HTTP server instance
func New(st *store.Store, authSvc *auth.Service, pipe *pipeline.Pipeline, cfg config.Server) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		store:    st,
		auth:     authSvc,
		pipeline: pipe,
		config:   cfg,
		log:      logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(securityHeaders)

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
}

// setupRoutes wires all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignUp)
			r.Post("/signin", s.handleSignIn)
			r.Post("/verify", s.handleVerifyEmail)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(s.requireSession)
				r.Get("/me", s.handleMe)
			})
		})

		r.Route("/articles", func(r chi.Router) {
			r.Use(s.requireSession)
			r.Post("/extract", s.handleExtractMetadata)
			r.Post("/", s.handleCreateArticle)
			r.Get("/", s.handleSearchArticles)
			r.Get("/{id}", s.handleGetArticle)
			r.Patch("/{id}", s.handleUpdateArticle)
			r.Delete("/{id}", s.handleDeleteArticle)
		})
	})
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// respondJSON writes a JSON response with the given status code
func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.log.Error("failed to encode response", "error", err.Error())
		}
	}
}

// errorResponse is the uniform error body
type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps a domain error to its HTTP status and writes it
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}
