// Package api exposes the HTTP interface for the stock watcher service.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gardenbot/stock-watcher/internal/config"
	"github.com/gardenbot/stock-watcher/internal/metrics"
	"github.com/gardenbot/stock-watcher/internal/stock"
)

// Enqueuer accepts check requests for execution. Satisfied by the
// dispatcher.
type Enqueuer interface {
	Enqueue(ctx context.Context, req stock.CheckRequest) error
}

// Server wires HTTP handlers to the dispatcher and store.
type Server struct {
	router   chi.Router
	store    stock.Store
	enqueuer Enqueuer
	ids      stock.IDGenerator
	clock    stock.Clock
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store stock.Store,
	enqueuer Enqueuer,
	ids stock.IDGenerator,
	clock stock.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.L()
	}
	s := &Server{
		store:    store,
		enqueuer: enqueuer,
		ids:      ids,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Get("/status", s.getStatus)
		r.Route("/checks", func(r chi.Router) {
			r.Get("/", s.listChecks)
			r.Post("/", s.submitCheck)
			r.Route("/{check_id}", func(r chi.Router) {
				r.Get("/", s.getCheck)
				r.Post("/cancel", s.cancelCheck)
			})
		})
		r.Get("/alerts", s.listAlerts)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency at request time.
	if _, err := s.store.ListChecks(r.Context(), 1); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// getStatus reports the most recent check with its snapshot, plus the last
// alert if one exists.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	check, err := s.store.LatestCheck(r.Context())
	if err != nil {
		s.writeError(w, http.StatusNotFound, "no checks recorded")
		return
	}
	payload := map[string]any{
		"check":   check,
		"targets": s.cfg.Watch.Targets,
		"url":     s.cfg.Watch.URL,
	}
	if snap, snapErr := s.store.GetSnapshot(r.Context(), check.ID); snapErr == nil {
		payload["snapshot"] = snap
	}
	if alert, alertErr := s.store.LastAlert(r.Context()); alertErr == nil {
		payload["last_alert"] = alert
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) submitCheck(w http.ResponseWriter, r *http.Request) {
	checkID, err := s.enqueueCheck(r.Context(), stock.TriggerManual)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"check_id": checkID})
}

func (s *Server) listChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := s.store.ListChecks(r.Context(), parseLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list checks")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"checks": checks})
}

func (s *Server) getCheck(w http.ResponseWriter, r *http.Request) {
	checkID := chi.URLParam(r, "check_id")
	check, err := s.store.GetCheck(r.Context(), checkID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "check not found")
		return
	}
	result := stock.CheckResult{Check: check}
	if snap, snapErr := s.store.GetSnapshot(r.Context(), checkID); snapErr == nil {
		result.Snapshot = &snap
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) cancelCheck(w http.ResponseWriter, r *http.Request) {
	checkID := chi.URLParam(r, "check_id")
	if err := s.store.UpdateCheckStatus(
		r.Context(),
		checkID,
		stock.CheckStatusCanceled,
		"canceled via API",
		stock.Counters{},
	); err != nil {
		if errors.Is(err, stock.ErrCheckFinished) {
			s.writeError(w, http.StatusConflict, "check already finished")
			return
		}
		s.writeError(w, http.StatusNotFound, "check not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"check_id": checkID,
		"status":   string(stock.CheckStatusCanceled),
	})
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ListAlerts(r.Context(), parseLimit(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) enqueueCheck(ctx context.Context, trigger stock.Trigger) (string, error) {
	checkID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate check id: %w", err)
	}
	now := s.clock.Now()
	check := stock.Check{
		ID:        checkID,
		Status:    stock.CheckStatusQueued,
		Trigger:   trigger,
		Requested: now,
	}
	if err := s.store.CreateCheck(ctx, check); err != nil {
		return "", fmt.Errorf("create check: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req := stock.CheckRequest{
		CheckID:   checkID,
		Trigger:   trigger,
		Submitted: now.Unix(),
	}
	if err := s.enqueuer.Enqueue(queueCtx, req); err != nil {
		return "", fmt.Errorf("enqueue check: %w", err)
	}
	return checkID, nil
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		metrics.ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				writeJSONStatic(w, http.StatusForbidden, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSONStatic(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
