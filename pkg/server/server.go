// Package server is the thin HTTP surface over the ask and session usecases.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/cygnet/pkg/model"
	"github.com/m-mizutani/cygnet/pkg/usecase/ask"
	"github.com/m-mizutani/cygnet/pkg/usecase/session"
	"github.com/m-mizutani/cygnet/pkg/utils/logging"
)

type Server struct {
	ask      *ask.UseCase
	sessions *session.UseCase
	logger   *slog.Logger
}

// New creates the HTTP server facade.
func New(askUC *ask.UseCase, sessionUC *session.UseCase, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{ask: askUC, sessions: sessionUC, logger: logger}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Post("/ask", s.handleAsk)
	r.Post("/sessions/{sessionID}/end", s.handleEndSession)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.With(r.Context(), s.logger)
		next.ServeHTTP(w, r.WithContext(ctx))
		s.logger.Debug("http request",
			"method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
}

type askResponse struct {
	SessionID string           `json:"session_id"`
	Answer    string           `json:"answer"`
	Query     string           `json:"query,omitempty"`
	Rows      []map[string]any `json:"rows,omitempty"`
	Attempts  int              `json:"attempts"`
	GaveUp    bool             `json:"gave_up"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	out, err := s.ask.Ask(r.Context(), ask.Input{
		UserID:    model.UserID(req.UserID),
		SessionID: model.SessionID(req.SessionID),
		Question:  req.Question,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidRequest):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, model.ErrServiceUnavailable):
			s.logger.Error("ask failed", "error", err)
			respondError(w, http.StatusServiceUnavailable, "a backing service is unavailable, try again later")
		default:
			s.logger.Error("ask failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to answer the question")
		}
		return
	}

	respondJSON(w, http.StatusOK, askResponse{
		SessionID: string(out.SessionID),
		Answer:    out.Answer,
		Query:     out.Query,
		Rows:      out.Rows,
		Attempts:  out.Attempts,
		GaveUp:    out.GaveUp,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(chi.URLParam(r, "sessionID"))

	if err := s.sessions.End(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("end session failed", "session_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to end session")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "archiving scheduled"})
}

func respondJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, map[string]string{"error": msg})
}
