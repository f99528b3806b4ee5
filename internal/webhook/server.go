package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/slack-relay/internal/log"
	"github.com/mattjoyce/slack-relay/internal/observability/metrics"
	"github.com/mattjoyce/slack-relay/internal/observability/tracing"
	"github.com/mattjoyce/slack-relay/internal/relay"
)

// Server represents the relay HTTP server.
type Server struct {
	config   Config
	notifier Notifier
	logger   *slog.Logger
	server   *http.Server

	startedAt time.Time
	now       func() time.Time
}

// New creates a new server instance. Zero config values get defaults.
func New(config Config, notifier Notifier, logger *slog.Logger) *Server {
	return &Server{
		config:    config.withDefaults(),
		notifier:  notifier,
		logger:    logger,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Handler returns the routed HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails. Shutdown waits up to DefaultShutdownTimeout for in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("relay server starting",
		"listen", s.config.Listen,
		"webhook_path", s.config.WebhookPath,
		"interactions_path", s.config.InteractionsPath,
		"webhook_hmac", s.config.WebhookSecret != "",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("relay server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing.Middleware)
	r.Use(metrics.Middleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post(s.config.WebhookPath, s.handleNotify)
	r.Post(s.config.InteractionsPath, s.handleInteraction)
	r.Get(healthPath, s.handleHealth)
	if s.config.MetricsPath != "" {
		r.Method(http.MethodGet, s.config.MetricsPath, metrics.Handler())
	}

	return r
}

// loggingMiddleware logs HTTP requests without their bodies.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// readBody reads at most MaxBodySize bytes. tooLarge reports an oversized body.
func (s *Server) readBody(r *http.Request) (body []byte, tooLarge bool, err error) {
	body, err = io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(body)) > s.config.MaxBodySize {
		return nil, true, nil
	}
	return body, false, nil
}

// handleNotify validates a notification webhook and delivers it.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.WithRequest(s.logger, middleware.GetReqID(ctx))

	body, tooLarge, err := s.readBody(r)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if tooLarge {
		metrics.RecordNotification(metrics.OutcomeRejected)
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if s.config.WebhookSecret != "" {
		signature := r.Header.Get(s.config.SignatureHeader)
		if err := verifyHMACSignature(body, signature, s.config.WebhookSecret); err != nil {
			logger.Warn("webhook signature verification failed",
				"path", r.URL.Path,
				"header", s.config.SignatureHeader,
				"signature_present", signature != "",
			)
			metrics.RecordSignatureFailure(s.config.WebhookPath)
			metrics.RecordNotification(metrics.OutcomeRejected)
			s.respondError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	n, err := relay.ParseRequest(body)
	if err != nil {
		var verr *relay.ValidationError
		if errors.As(err, &verr) {
			logger.Debug("notification rejected", "reason", verr.Message)
			metrics.RecordNotification(metrics.OutcomeRejected)
			s.respondText(w, http.StatusBadRequest, verr.Message)
			return
		}
		logger.Error("Error sending message", "error", err)
		metrics.RecordNotification(metrics.OutcomeFailed)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if err := s.notifier.Deliver(ctx, n); err != nil {
		logger.Error("Error sending message", "error", err)
		metrics.RecordNotification(metrics.OutcomeFailed)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	metrics.RecordNotification(metrics.OutcomeDelivered)
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(s.now().Sub(s.startedAt).Seconds()),
		Version:       s.config.Version,
	})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write response failed", "error", err)
	}
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

// respondText sends a plain-text response.
func (s *Server) respondText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}
