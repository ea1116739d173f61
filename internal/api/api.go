// Package api exposes the admin HTTP surface: trigger jobs, inspect runs,
// browse detected changes and derived scores. JSON in, JSON out.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/appmetry/appmetry/internal/pipeline"
	"github.com/appmetry/appmetry/internal/queue"
	"github.com/appmetry/appmetry/internal/store"
)

// Server holds the API's dependencies.
type Server struct {
	store  *store.Store
	queue  *queue.Queue
	logger *slog.Logger
}

// NewServer creates a Server.
func NewServer(st *store.Store, q *queue.Queue, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: st, queue: q, logger: logger}
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", s.handleEnqueueJob)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)

		r.Get("/apps/{slug}/changes", s.handleAppChanges)
		r.Get("/apps/{slug}/metrics", s.handleAppMetrics)
		r.Get("/apps/{a}/similarity/{b}", s.handleSimilarity)

		r.Get("/keywords/{keyword}/score", s.handleKeywordScore)
		r.Get("/sightings", s.handleListSightings)

		r.Route("/tracked", func(r chi.Router) {
			r.Get("/apps", s.handleListTrackedApps)
			r.Post("/apps", s.handleTrackApp)
			r.Get("/keywords", s.handleListTrackedKeywords)
			r.Post("/keywords", s.handleTrackKeyword)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB.PingContext(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// enqueueRequest is the POST /api/jobs body. Queue defaults to
// "interactive": an operator hitting the API wants their lookup now, not
// behind tonight's batch.
type enqueueRequest struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	Queue  string `json:"queue"`
}

func (s *Server) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Queue == "" {
		req.Queue = queue.Interactive
	}
	id, err := queue.EnqueueOrRecord(r.Context(), s.queue, s.store, &queue.Job{
		Queue:       req.Queue,
		Type:        req.Type,
		Target:      req.Target,
		TriggeredBy: "api",
	}, s.logger)
	if err != nil {
		if errors.Is(err, queue.ErrEmptyType) {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(r.Context(), r.URL.Query().Get("type"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": runView(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, errors.New("run not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, runView([]*store.Run{run})[0])
}

func (s *Server) handleAppChanges(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	changes, err := s.store.ListChanges(r.Context(), store.EntityApp, slug, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"app": slug, "changes": changes})
}

func (s *Server) handleAppMetrics(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	m, err := s.store.GetReviewMetrics(r.Context(), slug)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if m == nil {
		s.writeError(w, http.StatusNotFound, errors.New("no metrics for app"))
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	row, err := s.store.GetSimilarity(r.Context(), chi.URLParam(r, "a"), chi.URLParam(r, "b"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if row == nil {
		s.writeError(w, http.StatusNotFound, errors.New("pair not scored"))
		return
	}
	s.writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleKeywordScore(w http.ResponseWriter, r *http.Request) {
	keyword := chi.URLParam(r, "keyword")
	k, err := s.store.GetKeywordScore(r.Context(), keyword)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if k == nil {
		s.writeError(w, http.StatusNotFound, errors.New("keyword not scored"))
		return
	}
	s.writeJSON(w, http.StatusOK, k)
}

func (s *Server) handleListSightings(w http.ResponseWriter, r *http.Request) {
	contextKey := r.URL.Query().Get("context")
	if contextKey == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("context query parameter is required"))
		return
	}
	from := r.URL.Query().Get("from")
	if from == "" {
		from = time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02")
	}
	sightings, err := s.store.ListSightings(r.Context(), contextKey, from)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"context": contextKey, "from": from, "sightings": sightings})
}

func (s *Server) handleListTrackedApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.store.ListTrackedApps(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

func (s *Server) handleTrackApp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug string `json:"slug"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slug == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("slug is required"))
		return
	}
	if err := s.store.UpsertTrackedApp(r.Context(), req.Slug, req.Name); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	// Kick off an immediate first scrape so the new app has a baseline.
	if _, err := queue.EnqueueOrRecord(r.Context(), s.queue, s.store, &queue.Job{
		Queue:       queue.Interactive,
		Type:        pipeline.JobAppDetails,
		Target:      req.Slug,
		TriggeredBy: "api",
	}, s.logger); err != nil {
		s.logger.Error("api: baseline scrape enqueue failed", "app", req.Slug, "error", err)
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"slug": req.Slug})
}

func (s *Server) handleListTrackedKeywords(w http.ResponseWriter, r *http.Request) {
	kws, err := s.store.ListTrackedKeywords(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"keywords": kws})
}

func (s *Server) handleTrackKeyword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keyword string `json:"keyword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Keyword == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("keyword is required"))
		return
	}
	if err := s.store.UpsertTrackedKeyword(r.Context(), req.Keyword); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"keyword": req.Keyword})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("api: encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.logger.Error("api: request failed", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// runResponse flattens a Run for JSON output.
type runResponse struct {
	ID           string `json:"id"`
	ScraperType  string `json:"scraper_type"`
	Status       string `json:"status"`
	TriggeredBy  string `json:"triggered_by"`
	Queue        string `json:"queue"`
	ItemsScraped int    `json:"items_scraped"`
	ItemsFailed  int    `json:"items_failed"`
	DurationMs   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	StartedAt    int64  `json:"started_at"`
	CompletedAt  int64  `json:"completed_at"`
}

func runView(runs []*store.Run) []runResponse {
	out := make([]runResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, runResponse{
			ID:           r.ID,
			ScraperType:  r.ScraperType,
			Status:       string(r.Status),
			TriggeredBy:  r.TriggeredBy,
			Queue:        r.Queue,
			ItemsScraped: r.Metadata.ItemsScraped,
			ItemsFailed:  r.Metadata.ItemsFailed,
			DurationMs:   r.Metadata.DurationMs,
			Error:        r.Error,
			CreatedAt:    r.CreatedAt,
			StartedAt:    r.StartedAt,
			CompletedAt:  r.CompletedAt,
		})
	}
	return out
}
