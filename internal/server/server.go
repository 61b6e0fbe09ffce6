// Package server exposes the hook registry over HTTP.
//
// The response for a request is decided synchronously from the registry
// lookup and the signature header alone; body forwarding and process
// supervision happen after the status line has been flushed to the client,
// so a slow hook never delays the response. Responses always carry an empty
// body.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hookpipe/hookpipe/internal/dispatch"
	"github.com/hookpipe/hookpipe/internal/hook"
	"github.com/hookpipe/hookpipe/internal/signature"
)

// shutdownDrain bounds how long Shutdown waits for in-flight requests.
const shutdownDrain = 5 * time.Second

// Server routes inbound requests to hooks. It is shared read-only across all
// connections; per-delivery state lives in the dispatch package.
type Server struct {
	registry *hook.Registry
	runner   *dispatch.Runner
	logger   *slog.Logger
	server   *http.Server
}

// New creates a Server over an immutable registry.
func New(registry *hook.Registry, runner *dispatch.Runner, logger *slog.Logger) *Server {
	return &Server{
		registry: registry,
		runner:   runner,
		logger:   logger,
	}
}

// Handler returns the HTTP handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// All paths funnel into the registry; matching is an exact map lookup,
	// the router only carries the middleware chain.
	r.Handle("/*", http.HandlerFunc(s.handleHook))

	return r
}

// Start serves HTTP on ln until ctx is cancelled, then drains gracefully.
// In-flight hook processes are not cancelled by shutdown; only their own
// timeout can terminate them.
func (s *Server) Start(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("server starting", "addr", ln.Addr().String(), "hooks", s.registry.Len())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDrain)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// loggingMiddleware logs each request's routing decision. Bodies are never
// logged.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleHook implements the dispatch decision table. The request method is
// irrelevant; only the path and, for protected hooks, the signature header
// determine the response.
func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	h, ok := s.registry.Lookup(r.URL.Path)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var verifier *signature.Verifier
	if h.Authenticated() {
		header := r.Header.Get(signature.Header)
		if header == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		expected, status := signature.ParseHeader(header)
		switch status {
		case signature.Valid:
			verifier = signature.NewVerifier(h.Secret, expected)
		case signature.UnsupportedAlgorithm:
			w.WriteHeader(http.StatusNotAcceptable)
			return
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	p, err := s.runner.Launch(h)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	// The status line goes out before the body is consumed. Without full
	// duplex the HTTP/1 server drains and closes the body as soon as the
	// response headers flush, so the reads below would fail.
	if err := http.NewResponseController(w).EnableFullDuplex(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Warn("failed to enable full-duplex", "error", err)
	}

	// The response is decided; flush it before touching the body so the
	// client is never held up by body forwarding.
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	// The body must be drained before this handler returns (the HTTP layer
	// closes it afterwards); supervision of the child is detached and
	// outlives both the handler and the connection.
	s.runner.Deliver(p, r.Body, verifier)
	go s.runner.Supervise(p)
}
