// Package server exposes the tracker platform over a small JSON API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/elonfeng/tracklens/internal/store"
	"github.com/elonfeng/tracklens/pkg/pipeline"
	"github.com/elonfeng/tracklens/pkg/tracker"
)

// Server provides the HTTP API.
type Server struct {
	store   store.Store
	planner *tracker.Planner
	runner  *pipeline.Runner
	port    int
	logger  *zap.Logger
}

// New creates a new HTTP server.
func New(s store.Store, planner *tracker.Planner, runner *pipeline.Runner, port int, logger *zap.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:   s,
		planner: planner,
		runner:  runner,
		port:    port,
		logger:  logger,
	}
}

// Router builds the chi router; split out so tests can drive it with
// httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/trackers", func(r chi.Router) {
			r.Get("/", s.handleListTrackers)
			r.Post("/", s.handleCreateTracker)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTracker)
				r.Delete("/", s.handleDeleteTracker)
				r.Post("/run", s.handleRunTracker)
				r.Get("/results", s.handleResults)
			})
		})
	})
	return r
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("http server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createTrackerRequest struct {
	Prompt   string `json:"prompt"`
	Owner    string `json:"owner"`
	Public   bool   `json:"public"`
	Schedule string `json:"schedule"`
}

func (s *Server) handleCreateTracker(w http.ResponseWriter, r *http.Request) {
	var req createTrackerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	cfg, err := s.planner.Plan(r.Context(), req.Prompt)
	if errors.Is(err, tracker.ErrEmptyPrompt) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if req.Schedule == "" {
		req.Schedule = "1h"
	}
	tr := &store.Tracker{
		ID:        uuid.NewString(),
		Owner:     req.Owner,
		Prompt:    req.Prompt,
		Config:    cfg,
		Public:    req.Public,
		Schedule:  req.Schedule,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateTracker(r.Context(), tr); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"data": tr})
}

func (s *Server) handleListTrackers(w http.ResponseWriter, r *http.Request) {
	opts := store.ListTrackersOpts{Limit: 100}
	if owner := r.URL.Query().Get("owner"); owner != "" {
		opts.Owner = owner
	}
	if r.URL.Query().Get("public") == "true" {
		opts.PublicOnly = true
	}

	trackers, err := s.store.ListTrackers(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  trackers,
		"count": len(trackers),
	})
}

func (s *Server) handleGetTracker(w http.ResponseWriter, r *http.Request) {
	tr, err := s.store.GetTracker(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": tr})
}

func (s *Server) handleDeleteTracker(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteTracker(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunTracker(w http.ResponseWriter, r *http.Request) {
	tr, err := s.store.GetTracker(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	run, results, err := s.runner.Run(r.Context(), tr)
	if errors.Is(err, pipeline.ErrInvalidConfig) {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err != nil {
		// The run itself carries the terminal failed status.
		writeJSON(w, http.StatusOK, map[string]any{"data": run})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  run,
		"count": len(results),
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	trackerID := chi.URLParam(r, "id")

	run, err := s.store.LatestCompletedRun(r.Context(), trackerID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []store.TrackerResult{}, "count": 0})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	results, err := s.store.ListResults(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  results,
		"count": len(results),
		"run":   run,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
