package server

import (
	"net/http"
	"time"
)

// HealthResponse is the /health body
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatusResponse is the /api/status body
type StatusResponse struct {
	Version  string         `json:"version"`
	Uptime   string         `json:"uptime"`
	Database DatabaseStatus `json:"database"`
}

// DatabaseStatus represents database health
type DatabaseStatus struct {
	Connected bool `json:"connected"`
	Articles  int  `json:"articles"`
}

var serverStartTime = time.Now()

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := s.store.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}

	checks["database"] = "ok"
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

// handleStatus handles the /api/status endpoint
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(serverStartTime)

	status := StatusResponse{
		Version: "v1.0.0",
		Uptime:  uptime.String(),
	}

	if count, err := s.store.CountArticles(r.Context()); err == nil {
		status.Database.Connected = true
		status.Database.Articles = count
	}

	s.respondJSON(w, http.StatusOK, status)
}
