// Package server is the HTTP front door: it authenticates solve requests
// and hands them off to a session runner in the background.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/entrhq/gauntlet/pkg/logging"
	"github.com/entrhq/gauntlet/pkg/solver"
)

// SessionRunner executes one solve session to completion.
type SessionRunner interface {
	Run(ctx context.Context, task *solver.Task) *solver.SessionReport
}

// Server accepts solve requests over HTTP.
type Server struct {
	secret string
	runner SessionRunner
	log    *logging.Logger
	router chi.Router
}

// New builds a server. secret is the shared secret solve requests must
// present; runner executes accepted sessions.
func New(secret string, runner SessionRunner) *Server {
	log, _ := logging.NewLogger("server")
	s := &Server{
		secret: secret,
		runner: runner,
		log:    log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Post("/solve", s.handleSolve)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type solveRequest struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

type solveResponse struct {
	RunID string `json:"run_id"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSolve validates and authenticates a solve request, then starts the
// session in the background and immediately acknowledges with a run ID. The
// session outlives the request: it runs under its own deadline, not the
// request context.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.URL == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url and email are required"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.secret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid secret"})
		return
	}

	runID := uuid.New().String()
	task := &solver.Task{
		URL:       req.URL,
		Email:     req.Email,
		Secret:    req.Secret,
		StartedAt: time.Now(),
	}

	s.log.Infof("run %s accepted for %s", runID, task.URL)
	go func() {
		report := s.runner.Run(context.Background(), task)
		s.log.Infof("run %s finished: %d/%d correct, state %s",
			runID, report.Correct, report.TasksAttempted, report.FinalState)
	}()

	writeJSON(w, http.StatusAccepted, solveResponse{RunID: runID})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
