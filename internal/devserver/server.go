// Package devserver is a local stand-in for the generation and persistence
// collaborators.
//
// It speaks the same wire contracts the real services would: the frame
// stream on /api/generate, the single-shot /api/generate-ui, and
// user-scoped artifact CRUD under /api/artifacts. Generation is
// deterministic (see synth.go) and persistence is a local sqlite file, so
// the whole product is usable offline and end-to-end testable without any
// model or cloud account.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/backend"
	"github.com/maquette-dev/maquette/internal/config"
	"github.com/maquette-dev/maquette/internal/log"
	"github.com/maquette-dev/maquette/internal/store"
	"github.com/maquette-dev/maquette/internal/stream"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second

	// streamFrameDelay paces scripted events so clients exercise their
	// incremental rendering path instead of one burst.
	streamFrameDelay = 150 * time.Millisecond
)

// Server serves the dev backend.
type Server struct {
	db     *DB
	logger log.Logger
	mux    http.Handler
	addr   string
}

// New builds the server from config. The caller owns the DB lifetime edge:
// Close the returned server, not the DB.
func New(cfg config.ServeConfig, logger log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	s := &Server{db: db, logger: logger, addr: cfg.Addr}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/generate-ui", s.handleGenerateUI)
	mux.HandleFunc("GET /api/artifacts", s.handleList)
	mux.HandleFunc("POST /api/artifacts", s.handleCreate)
	mux.HandleFunc("GET /api/artifacts/{id}", s.handleGet)
	mux.HandleFunc("PATCH /api/artifacts/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /api/artifacts/{id}", s.handleDelete)

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(newIPLimiter(rps, burst), logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health stays outside the middleware stack so probes are never rate
	// limited or logged.
	top := http.NewServeMux()
	top.HandleFunc("GET /health", s.handleHealth)
	top.Handle("/", handler)
	s.mux = top

	return s, nil
}

// Handler exposes the routed stack, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.mux }

// Close releases the database.
func (s *Server) Close() error { return s.db.Close() }

// Run serves until ctx is cancelled, then drains with a bounded shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("dev server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info("dev server stopped")
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// handleGenerate streams the scripted spec conversation as data: frames.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req backend.SpecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", s.logger)
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required", s.logger)
		return
	}

	events, err := synthesizeSpec(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "synthesizing spec failed", s.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", s.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for i, e := range events {
		if i > 0 {
			select {
			case <-r.Context().Done():
				// Client stopped reading; best-effort cancellation.
				return
			case <-time.After(streamFrameDelay):
			}
		}
		frame, err := stream.Marshal(e)
		if err != nil {
			s.logger.Error("marshaling frame failed", "error", err)
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleGenerateUI(w http.ResponseWriter, r *http.Request) {
	var req backend.UIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", s.logger)
		return
	}
	if req.Spec == "" {
		writeError(w, http.StatusBadRequest, "spec is required", s.logger)
		return
	}

	res, err := synthesizeUI(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "synthesizing ui failed", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, res, s.logger)
}

// userID pulls the scoping parameter every artifact route requires.
func userID(r *http.Request) string {
	return r.URL.Query().Get("user_id")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", s.logger)
		return
	}
	artifacts, err := s.db.List(r.Context(), uid)
	if err != nil {
		s.logger.Error("listing artifacts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing artifacts failed", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, artifacts, s.logger)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var a artifact.Artifact
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", s.logger)
		return
	}
	if a.UserID == "" {
		a.UserID = userID(r)
	}
	if a.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", s.logger)
		return
	}

	stored, err := s.db.Create(r.Context(), &a)
	if err != nil {
		s.logger.Error("creating artifact failed", "error", err)
		writeError(w, http.StatusInternalServerError, "creating artifact failed", s.logger)
		return
	}
	writeJSON(w, http.StatusCreated, stored, s.logger)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", s.logger)
		return
	}
	a, err := s.db.Get(r.Context(), uid, r.PathValue("id"))
	if errors.Is(err, artifact.ErrNotFound) {
		writeError(w, http.StatusNotFound, "artifact not found", s.logger)
		return
	}
	if err != nil {
		s.logger.Error("getting artifact failed", "error", err)
		writeError(w, http.StatusInternalServerError, "getting artifact failed", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, a, s.logger)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", s.logger)
		return
	}
	var req store.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", s.logger)
		return
	}

	a, err := s.db.Update(r.Context(), uid, r.PathValue("id"), req)
	if errors.Is(err, artifact.ErrNotFound) {
		writeError(w, http.StatusNotFound, "artifact not found", s.logger)
		return
	}
	if err != nil {
		s.logger.Error("updating artifact failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error(), s.logger)
		return
	}
	writeJSON(w, http.StatusOK, a, s.logger)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", s.logger)
		return
	}
	err := s.db.Delete(r.Context(), uid, r.PathValue("id"))
	if errors.Is(err, artifact.ErrNotFound) {
		writeError(w, http.StatusNotFound, "artifact not found", s.logger)
		return
	}
	if err != nil {
		s.logger.Error("deleting artifact failed", "error", err)
		writeError(w, http.StatusInternalServerError, "deleting artifact failed", s.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
