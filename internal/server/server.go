// Package server exposes the chat pipeline over HTTP: a JSON POST endpoint
// for single turns, a WebSocket endpoint with incremental replies, health
// probes, and the Prometheus metrics scrape.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lucasbarrios/leadline/internal/app"
	"github.com/lucasbarrios/leadline/internal/config"
	"github.com/lucasbarrios/leadline/internal/gate"
	"github.com/lucasbarrios/leadline/internal/observe"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// shutdownTimeout bounds the HTTP server drain on Run exit.
const shutdownTimeout = 10 * time.Second

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	// SessionID identifies the conversation. Clients keep it stable across
	// turns; a browser widget typically uses a random per-tab ID.
	SessionID string `json:"session_id"`

	Message string `json:"message"`

	// CaptchaToken is required when the captcha gate is enabled.
	CaptchaToken string `json:"captcha_token,omitempty"`
}

// ChatResponse is the POST /chat response body.
type ChatResponse struct {
	Reply  string `json:"reply"`
	Step   string `json:"step"`
	LeadID string `json:"lead_id,omitempty"`
	Note   string `json:"note,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Checker is a named readiness check.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server serves the chat API.
type Server struct {
	addr     string
	tls      *config.TLSConfig
	app      *app.App
	checkers []Checker
	handler  http.Handler
}

// New builds a Server from the listen config and the wired application.
// Checkers feed /readyz; /healthz is pure liveness.
func New(cfg config.ServerConfig, application *app.App, checkers ...Checker) *Server {
	s := &Server{
		addr:     cfg.ListenAddr,
		tls:      cfg.TLS,
		app:      application,
		checkers: checkers,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = observe.Middleware(application.Metrics())(mux)
	return s
}

// Handler returns the server's root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", s.addr, "tls", s.tls != nil)
		var err error
		if s.tls != nil {
			err = srv.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			slog.Warn("http server drain error", "err", err)
		}
		return ctx.Err()
	})

	return g.Wait()
}

// handleChat processes one chat turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}

	resp, err := s.app.Pipeline().HandleMessage(r.Context(), req.SessionID, req.Message, req.CaptchaToken)
	if err != nil {
		status, msg := mapPipelineError(err)
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Reply:  resp.Text,
		Step:   string(resp.Step),
		LeadID: resp.LeadID,
		Note:   resp.Note,
	})
}

// handleHealthz is the liveness probe: a process that serves HTTP is alive.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz runs the registered checkers and reports per-check results.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checkers))
	ok := true

	for _, c := range s.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ok = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	status := http.StatusOK
	body := map[string]any{"status": "ok", "checks": checks}
	if !ok {
		status = http.StatusServiceUnavailable
		body["status"] = "fail"
	}
	writeJSON(w, status, body)
}

// mapPipelineError translates pipeline errors to HTTP statuses with
// client-safe messages.
func mapPipelineError(err error) (int, string) {
	switch {
	case errors.Is(err, gate.ErrEmptyMessage):
		return http.StatusBadRequest, "message is empty"
	case errors.Is(err, gate.ErrTooLong):
		return http.StatusRequestEntityTooLarge, "message is too long"
	case errors.Is(err, gate.ErrDangerous):
		return http.StatusBadRequest, "message contains disallowed content"
	case errors.Is(err, app.ErrRateLimited):
		return http.StatusTooManyRequests, "too many messages; slow down"
	case errors.Is(err, app.ErrCaptchaDenied):
		return http.StatusForbidden, "captcha verification required"
	default:
		slog.Error("chat turn failed", "err", err)
		return http.StatusInternalServerError, "internal error"
	}
}

// writeJSON encodes v with the given status. Falls back to a bare 500 on
// encoding failure.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
