package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"trivia/internal/domain"
)

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateTableResponse is the response for table creation
type CreateTableResponse struct {
	TableCode string `json:"tableCode"`
}

// HistoryResponse lists finished games
type HistoryResponse struct {
	Games []domain.GameSummary `json:"games"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	Tables       int `json:"tables"`
	PlayingGames int `json:"playingGames"`
}

// handleCreateTable handles POST /api/tables
func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	engine, err := s.hub.CreateTable()
	if err != nil {
		s.logger.Error("failed to create table", "error", err)
		s.sendError(w, http.StatusInternalServerError, "CREATION_FAILED", "Failed to create table")
		return
	}

	s.sendJSON(w, http.StatusCreated, &CreateTableResponse{TableCode: engine.ID()})
}

// handleGetTable handles GET /api/tables/{code}
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))

	engine, err := s.hub.GetTable(code)
	if err != nil {
		if errors.Is(err, domain.ErrTableNotFound) {
			s.sendError(w, http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found")
		} else {
			s.sendError(w, http.StatusInternalServerError, domain.CodeInternal, "Internal server error")
		}
		return
	}

	s.sendSuccess(w, engine.View())
}

// handleHistory handles GET /api/history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.sendError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	if s.history == nil {
		s.sendSuccess(w, &HistoryResponse{Games: []domain.GameSummary{}})
		return
	}

	games, err := s.history.RecentGames(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to load history", "error", err)
		s.sendError(w, http.StatusInternalServerError, domain.CodeInternal, "Failed to load history")
		return
	}
	s.sendSuccess(w, &HistoryResponse{Games: games})
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := &HealthResponse{Status: "ok", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK

	for name, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			s.logger.Warn("health check failed", "name", name, "error", err)
			resp.Checks[name] = "error"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	s.sendJSON(w, status, resp)
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		Tables:       s.hub.TableCount(),
		PlayingGames: s.hub.PlayingCount(),
	})
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	s.sendJSON(w, http.StatusOK, data)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: status < http.StatusBadRequest,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
