package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mattjoyce/contentful-listener/internal/auth"
	"github.com/mattjoyce/contentful-listener/internal/config"
	"github.com/mattjoyce/contentful-listener/internal/events"
	"github.com/mattjoyce/contentful-listener/internal/log"
	"github.com/mattjoyce/contentful-listener/internal/metrics"
)

// Server represents the webhook HTTP server.
type Server struct {
	config  Config
	emitter Emitter
	logger  *slog.Logger
	metrics *metrics.Metrics
	server  *http.Server

	haltOnce sync.Once
	stopping atomic.Bool
	done     chan struct{}
	mu       sync.Mutex
	err      error
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithMetrics records request outcomes and dispatches on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new webhook server instance.
func New(cfg Config, emitter Emitter, logger *slog.Logger, opts ...Option) *Server {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.BodyReadTimeout <= 0 {
		cfg.BodyReadTimeout = DefaultBodyReadTimeout
	}
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailFast
	}

	s := &Server{
		config:  cfg,
		emitter: emitter,
		logger:  logger,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on the configured address and serves until ctx is cancelled
// or a malformed payload halts the listener (blocking).
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("webhook listen failed: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start with a caller-provided listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.BodyReadTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting",
		"listen", ln.Addr().String(),
		"auth", s.config.Auth != "",
		"failure_policy", string(s.config.FailurePolicy),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		if err := s.shutdown(); err != nil {
			return err
		}
		return ctx.Err()
	case <-s.done:
		s.logger.Error("webhook server halting after malformed payload", "error", s.Err())
		if err := s.shutdown(); err != nil {
			return err
		}
		return fmt.Errorf("%w: %w", ErrHalted, s.Err())
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// shutdown stops accepting connections and lets in-flight responses finish.
func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook server shutdown failed: %w", err)
	}
	return nil
}

// Done is closed once a malformed payload has halted the listener.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Err returns the payload failure that halted the listener, if any.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// halt reports err on the error channel and stops the listener. Only the first
// call has any effect, so subscribers see exactly one error before shutdown.
func (s *Server) halt(err error) {
	s.haltOnce.Do(func() {
		s.stopping.Store(true)
		s.emitter.EmitError(err)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.metrics.Halt()
		close(s.done)
	})
}

// halted is true from the moment a halt begins, before Done is closed.
func (s *Server) halted() bool {
	return s.stopping.Load()
}

// Handler returns the HTTP handler. Every method and path reaches the gateway.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.HandleFunc("/", s.handleWebhook)
	r.HandleFunc("/*", s.handleWebhook)

	return r
}

type deliveryIDKey struct{}

func deliveryIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(deliveryIDKey{}).(string)
	return id
}

// loggingMiddleware tags each delivery with an ID and logs it (excludes payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		w.Header().Set(DeliveryIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), deliveryIDKey{}, id))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"delivery_id", id,
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleWebhook validates one delivery and turns it into one dispatched event.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := log.WithDelivery(s.logger, deliveryIDFromContext(r.Context()))

	if s.halted() {
		s.metrics.Request(metrics.OutcomeHalted)
		s.respondError(w, http.StatusServiceUnavailable, "listener halted")
		return
	}

	if r.Header.Get("Content-Type") != MediaType {
		s.metrics.Request(metrics.OutcomeNotAcceptable)
		s.respondError(w, http.StatusNotAcceptable, "not acceptable")
		return
	}

	if !auth.Authorized(r, s.config.Auth) {
		logger.Warn("webhook authorization failed", "path", r.URL.Path)
		s.metrics.Request(metrics.OutcomeUnauthorized)
		w.Header().Set("WWW-Authenticate", `Basic realm="contentful"`)
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	topic, err := ParseTopic(r.Header.Get(TopicHeader))
	if err != nil {
		logger.Warn("webhook topic rejected", "error", err)
		s.metrics.Request(metrics.OutcomeBadTopic)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	webhookName := r.Header.Get(WebhookNameHeader)
	name := topic.Name()

	body, status, err := s.readBody(w, r)
	if err != nil {
		logger.Warn("webhook body rejected", "error", err, "status", status)
		// Unread body bytes would otherwise be drained before the status is written.
		w.Header().Set("Connection", "close")
		if status == http.StatusRequestEntityTooLarge {
			s.metrics.Request(metrics.OutcomeTooLarge)
			s.respondError(w, status, "payload too large")
		} else {
			s.metrics.Request(metrics.OutcomeReadError)
			s.respondError(w, status, "failed to read request body")
		}
		return
	}

	logger = logger.With(
		"event", name,
		"topic", topic.Origin+"."+topic.Kind+"."+topic.Event,
		"body_bytes", len(body),
		"body_blake3", config.Digest(body),
	)

	switch s.config.FailurePolicy {
	case Reject:
		ev, err := BuildEvent(body, topic, webhookName)
		if err != nil {
			logger.Warn("webhook payload rejected", "error", err)
			s.metrics.Request(metrics.OutcomeBadPayload)
			s.respondError(w, http.StatusBadRequest, "malformed payload")
			return
		}
		s.commit(w)
		s.dispatch(logger, name, ev, len(body))

	default:
		// The sender gets 200 before the body is even parsed.
		s.commit(w)
		ev, err := BuildEvent(body, topic, webhookName)
		if err != nil {
			logger.Error("webhook payload malformed, halting listener", "error", err)
			s.metrics.Request(metrics.OutcomeBadPayload)
			s.halt(err)
			return
		}
		if s.halted() {
			logger.Warn("webhook event dropped, listener halted")
			s.metrics.Request(metrics.OutcomeHalted)
			return
		}
		s.dispatch(logger, name, ev, len(body))
	}
}

// readBody accumulates the request body under the size and time bounds.
// On failure it also returns the status to answer with, and the read deadline
// is left in place so nothing further blocks on the connection.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, int, error) {
	rc := http.NewResponseController(w)
	if err := rc.SetReadDeadline(time.Now().Add(s.config.BodyReadTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug("could not set body read deadline", "error", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, s.config.MaxBodySize)); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, http.StatusRequestEntityTooLarge, err
		case errors.Is(err, os.ErrDeadlineExceeded):
			return nil, http.StatusRequestTimeout, err
		default:
			return nil, http.StatusBadRequest, err
		}
	}
	_ = rc.SetReadDeadline(time.Time{})
	return buf.Bytes(), 0, nil
}

// commit writes the 200 status line and pushes it to the sender.
func (s *Server) commit(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if err := http.NewResponseController(w).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug("flush failed", "error", err)
	}
}

func (s *Server) dispatch(logger *slog.Logger, name string, ev events.Event, size int) {
	s.metrics.Request(metrics.OutcomeAccepted)
	s.emitter.Emit(name, ev)
	s.metrics.Event(name, size)
	logger.Info("webhook event dispatched", "entity_id", ev.ID, "space", ev.Space)
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
