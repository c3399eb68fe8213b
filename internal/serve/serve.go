// Package serve exposes the orchestra over HTTP: REST endpoints under
// /api/v1 and a websocket stream of thinking records. The orchestra
// behind the server can be swapped atomically when the config file
// changes, so a reload never interrupts in-flight requests.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/borjamoskv/Cortex-Persist-sub001/internal/output"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/thought"
	"github.com/borjamoskv/Cortex-Persist-sub001/internal/watcher"
)

// API error codes.
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInvalidMode     = "INVALID_MODE"
	ErrCodeInvalidStrategy = "INVALID_STRATEGY"
	ErrCodeHistoryFailed   = "HISTORY_FAILED"
)

// Thinker is the slice of the orchestra the server needs. *thought.Orchestra
// satisfies it; tests substitute stubs.
type Thinker interface {
	Think(ctx context.Context, prompt string, mode thought.ThinkingMode, systemOverride *string, strategyOverride *thought.FusionStrategy) thought.FusedThought
	Stats() thought.Stats
	Status() thought.Status
	Records(n int) []thought.ThinkingRecord
}

// Server routes HTTP requests to the current orchestra.
type Server struct {
	log *slog.Logger
	hub *Hub

	mu       sync.RWMutex
	thinker  Thinker
	rebuild  func() (Thinker, error)
	watch    *watcher.Watcher
}

// New builds a Server around an orchestra.
func New(thinker Thinker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:     log,
		hub:     NewHub(log),
		thinker: thinker,
	}
}

// Hub returns the server's websocket hub, for wiring a broadcast sink.
func (s *Server) Hub() *Hub { return s.hub }

// current returns the active orchestra.
func (s *Server) current() Thinker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thinker
}

// Swap atomically replaces the orchestra serving new requests.
func (s *Server) Swap(thinker Thinker) {
	s.mu.Lock()
	s.thinker = thinker
	s.mu.Unlock()
	s.log.Info("orchestra swapped")
}

// WatchConfig reloads via rebuild whenever the file at path changes. The
// old orchestra keeps serving when a reload fails.
func (s *Server) WatchConfig(path string, rebuild func() (Thinker, error)) error {
	s.rebuild = rebuild
	w, err := watcher.Watch(path, func() {
		next, err := s.rebuild()
		if err != nil {
			s.log.Error("config reload failed, keeping previous orchestra", "path", path, "error", err)
			return
		}
		s.Swap(next)
		s.log.Info("config reloaded", "path", path)
	}, watcher.WithErrorHandler(func(err error) {
		s.log.Error("config watch error", "error", err)
	}))
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	s.watch = w
	return nil
}

// Close stops the config watcher and disconnects websocket clients.
func (s *Server) Close() error {
	s.hub.Close()
	if s.watch != nil {
		return s.watch.Close()
	}
	return nil
}

// Router builds the chi router with all API routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/think", s.handleThink)
		r.Get("/stats", s.handleStats)
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Get("/events", s.handleEvents)
		r.Get("/healthz", s.handleHealthz)
	})
	return r
}

// ListenAndServe runs the API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ThinkRequest is the body of POST /api/v1/think.
type ThinkRequest struct {
	Prompt   string `json:"prompt"`
	Mode     string `json:"mode,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	System   string `json:"system,omitempty"`
}

func (s *Server) handleThink(w http.ResponseWriter, r *http.Request) {
	var req ThinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "prompt is required")
		return
	}

	var route *output.RouteResponse
	var mode thought.ThinkingMode
	if req.Mode == "" {
		decision := thought.Classify(req.Prompt)
		mode = decision.Mode
		rr := output.NewRouteResponse(decision)
		route = &rr
	} else {
		parsed, ok := thought.ParseMode(req.Mode)
		if !ok {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidMode, "unknown mode: "+req.Mode)
			return
		}
		mode = parsed
	}

	var strategyOverride *thought.FusionStrategy
	if req.Strategy != "" {
		strategy, ok := thought.ParseStrategy(req.Strategy)
		if !ok {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidStrategy, "unknown strategy: "+req.Strategy)
			return
		}
		strategyOverride = &strategy
	}
	var systemOverride *string
	if req.System != "" {
		systemOverride = &req.System
	}

	fused := s.current().Think(r.Context(), req.Prompt, mode, systemOverride, strategyOverride)
	resp := output.NewThinkResponse(mode, fused)
	resp.Route = route
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, output.StatsResponse{
		TimestampedResponse: output.NewTimestamped(),
		Stats:               s.current().Stats(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, output.StatusResponse{
		TimestampedResponse: output.NewTimestamped(),
		Status:              s.current().Status(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	recs := s.current().Records(limit)
	writeJSON(w, http.StatusOK, output.HistoryResponse{
		TimestampedResponse: output.NewTimestamped(),
		Records:             recs,
		Count:               len(recs),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, output.NewErrorWithCode(code, msg))
}
