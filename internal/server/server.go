// Package server exposes the orchestrator over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"mentorctl/internal/harness"
	"mentorctl/internal/model"
	"mentorctl/pkg/logging"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const subsystem = "HTTP"

// Server serves the run API.
type Server struct {
	orchestrator *harness.Orchestrator
	catalog      *harness.Catalog
	registry     *harness.Registry
	defaults     model.TestConfig
	handler      http.Handler
}

// Options configures New.
type Options struct {
	// Defaults is the base config that request overrides apply to.
	Defaults model.TestConfig
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// AllowedOrigins for CORS. Empty allows all origins.
	AllowedOrigins []string
}

// New builds the router.
func New(orchestrator *harness.Orchestrator, catalog *harness.Catalog, registry *harness.Registry, opts Options) *Server {
	s := &Server{
		orchestrator: orchestrator,
		catalog:      catalog,
		registry:     registry,
		defaults:     opts.Defaults,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/suites", s.handleListSuites).Methods(http.MethodGet)
	api.HandleFunc("/checks", s.handleListChecks).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.handleStartRun).Methods(http.MethodPost)
	api.HandleFunc("/runs/active", s.handleActiveRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/cancel", s.handleCancelRun).Methods(http.MethodPost)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(r)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on host:port until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, host string, port int) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(subsystem, "Listening on http://%s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	logging.Info(subsystem, "HTTP server stopped")
	return nil
}

// StartRunRequest is the body of POST /api/v1/runs.
type StartRunRequest struct {
	Suite  string                `json:"suite"`
	Config model.ConfigOverrides `json:"config"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type suiteInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tests       []string `json:"tests"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error(subsystem, err, "Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.orchestrator.Active() != nil})
}

func (s *Server) handleListSuites(w http.ResponseWriter, _ *http.Request) {
	defs := s.catalog.Definitions()
	out := make([]suiteInfo, 0, len(defs))
	for _, d := range defs {
		info := suiteInfo{Name: d.Name, Description: d.Description, Tests: make([]string, 0, len(d.Tests))}
		for _, t := range d.Tests {
			info.Tests = append(info.Tests, t.Name)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListChecks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orchestrator.History())
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	suite, ok := s.catalog.Suite(req.Suite)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown suite %q", req.Suite))
		return
	}
	cfg, err := req.Config.Apply(s.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h, err := s.orchestrator.Start(r.Context(), suite, cfg)
	if errors.Is(err, harness.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	logging.Info(subsystem, "Started suite %s as run %s", suite.Name, h.ID)
	w.Header().Set("Location", "/api/v1/runs/"+h.ID)
	writeJSON(w, http.StatusAccepted, h.Snapshot())
}

func (s *Server) handleActiveRun(w http.ResponseWriter, _ *http.Request) {
	h := s.orchestrator.Active()
	if h == nil {
		writeError(w, http.StatusNotFound, errors.New("no run in progress"))
		return
	}
	writeJSON(w, http.StatusOK, h.Snapshot())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	h, err := s.orchestrator.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Snapshot())
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	h, err := s.orchestrator.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	snap := h.Snapshot()
	if snap.Status.Terminal() {
		writeError(w, http.StatusConflict, fmt.Errorf("run %s already %s", h.ID, snap.Status))
		return
	}
	h.Cancel()
	logging.Info(subsystem, "Cancellation requested for run %s", h.ID)
	writeJSON(w, http.StatusAccepted, h.Snapshot())
}
