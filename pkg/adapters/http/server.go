// Package http exposes workflow runs over HTTP: starting, resuming and
// killing runs, with output streamed back as Server-Sent Events.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weftworks/loom/internal/logging"
	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/ports"
	"github.com/weftworks/loom/pkg/workflow"
)

// Server routes workflow requests to a driver.
type Server struct {
	driver    *workflow.Driver
	killStore ports.KillStore
	logger    *slog.Logger
	registry  *prometheus.Registry
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetricsRegistry mounts /metrics over the given registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// NewHandler builds the HTTP handler.
func NewHandler(driver *workflow.Driver, killStore ports.KillStore, opts ...Option) http.Handler {
	s := &Server{
		driver:    driver,
		killStore: killStore,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	r.Post("/runs", s.handleStart)
	r.Post("/runs/{requestID}/resume", s.handleResume)
	r.Post("/runs/{requestID}/kill", s.handleKill)
	return r
}

// startRequest is the body of POST /runs.
type startRequest struct {
	User      string               `json:"user"`
	RequestID string               `json:"requestId,omitempty"`
	Task      string               `json:"task"`
	Resources []domain.ResourceRef `json:"resources,omitempty"`
	Active    []domain.ResourceRef `json:"active,omitempty"`
	Seed      map[string]any       `json:"seed,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Task == "" {
		http.Error(w, "task is required", http.StatusBadRequest)
		return
	}

	ch, err := NewSSEChannel(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	outcome, err := s.driver.Run(r.Context(), workflow.RunParams{
		User:      req.User,
		RequestID: req.RequestID,
		Task:      req.Task,
		Resources: req.Resources,
		Active:    req.Active,
		Seed:      req.Seed,
		Output:    ch,
	})
	if err != nil {
		// The stream is already closed; only log.
		s.logger.Error("run failed", "user", req.User, "err", err)
		return
	}
	s.logger.Info("run completed", "user", req.User, "final_state", outcome.Final, "paused", outcome.Paused)
}

// resumeRequest is the body of POST /runs/{requestID}/resume. When Record
// is omitted the server loads it from the resume store.
type resumeRequest struct {
	User   string                   `json:"user"`
	Record *domain.ResumptionRecord `json:"record,omitempty"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var req resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ch, err := NewSSEChannel(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var outcome = struct {
		Final  string
		Paused bool
	}{}
	if req.Record != nil {
		out, rerr := s.driver.Resume(r.Context(), req.User, requestID, *req.Record, ch)
		err = rerr
		outcome.Final, outcome.Paused = out.Final, out.Paused
	} else {
		out, rerr := s.driver.ResumeStored(r.Context(), req.User, requestID, ch)
		err = rerr
		outcome.Final, outcome.Paused = out.Final, out.Paused
	}
	if err != nil {
		s.logger.Error("resume failed", "user", req.User, "request_id", requestID, "err", err)
		return
	}
	s.logger.Info("resume completed", "user", req.User, "request_id", requestID, "final_state", outcome.Final, "paused", outcome.Paused)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	user := r.URL.Query().Get("user")

	err := s.killStore.Put(r.Context(), domain.KillRecord{
		User:        user,
		RequestID:   requestID,
		ShouldExit:  true,
		LastUpdated: time.Now(),
		TTL:         time.Hour,
	})
	if err != nil {
		http.Error(w, "failed to record kill request", http.StatusInternalServerError)
		return
	}

	s.logger.Info("kill requested", "user", user, "request_id", requestID)
	w.WriteHeader(http.StatusAccepted)
}
