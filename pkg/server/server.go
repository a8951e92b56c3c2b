// Package server exposes the tool registry over HTTP: a JSON index for the
// presentation layer and the generic execution endpoint POST /t/{name}/run.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uzlow/webtools/pkg/dispatch"
	"github.com/uzlow/webtools/pkg/registry"
)

// Options configures the HTTP server.
type Options struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	// MaxBodyBytes bounds execution request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
}

// Server serves the descriptive and execution boundaries.
type Server struct {
	options        Options
	server         *http.Server
	registry       *registry.Registry
	dispatcher     *dispatch.Dispatcher
	metricsHandler http.Handler
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// New creates a server over the given registry and dispatcher. metricsHandler
// may be nil to disable the /metrics endpoint.
func New(options Options, reg *registry.Registry, dispatcher *dispatch.Dispatcher, metricsHandler http.Handler, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 8080
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = 10 * time.Second
	}
	if options.MaxBodyBytes == 0 {
		options.MaxBodyBytes = 1 << 20
	}
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	return &Server{
		options:        options,
		registry:       reg,
		dispatcher:     dispatcher,
		metricsHandler: metricsHandler,
		logger:         logger.With().Str("component", "server").Logger(),
		startTime:      time.Now(),
	}, nil
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleIndex)
	mux.HandleFunc("GET /t/{name}", s.handleDescribe)
	mux.HandleFunc("POST /t/{name}/run", s.handleRun)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	return s.withMiddleware(mux)
}

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached with requests in flight")
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// withMiddleware adds request IDs, access logging, and shutdown rejection.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		shuttingDown := s.isShuttingDown
		s.shutdownMu.RUnlock()
		if shuttingDown {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "server is shutting down"})
			return
		}

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)

		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"tools":     s.registry.Len(),
		"loaded_at": s.registry.BuiltAt().UTC().Format(time.RFC3339),
	})
}

// handleIndex returns every registered tool plus rejection diagnostics, in
// discovery order.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tools":    s.registry.Definitions(),
		"rejected": s.registry.Rejections(),
	})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	def, ok := s.registry.Lookup(name)
	if !ok {
		writeFailure(w, &dispatch.Failure{
			Kind:    dispatch.KindToolNotFound,
			Message: fmt.Sprintf("tool not found: %s", name),
		})
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleRun is the execution boundary: a JSON-object body is handed to the
// dispatcher as the raw payload, and the result is wrapped in the mutually
// exclusive result/error envelope.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	payload, err := decodePayload(w, r, s.options.MaxBodyBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	result := s.dispatcher.Execute(r.Context(), name, payload)
	if result.Success {
		writeJSON(w, http.StatusOK, map[string]any{"result": result.Value})
		return
	}
	writeFailure(w, result.Failure)
}

// decodePayload reads the request body as a JSON object. An empty body is an
// empty payload; anything else non-object is rejected at the boundary, and an
// oversize body surfaces as *http.MaxBytesError rather than truncating.
func decodePayload(w http.ResponseWriter, r *http.Request, maxBytes int64) (map[string]any, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) == 0 {
		return map[string]any{}, nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("request body must be a JSON object")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

// statusFor maps failure kinds to HTTP statuses. The envelope, not the
// status, is the contract; this mapping is the host's choice.
func statusFor(kind dispatch.Kind) int {
	switch kind {
	case dispatch.KindToolNotFound:
		return http.StatusNotFound
	case dispatch.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, failure *dispatch.Failure) {
	body := map[string]any{
		"error": failure.Message,
		"kind":  failure.Kind,
	}
	if len(failure.Details) > 0 {
		body["details"] = failure.Details
	}
	writeJSON(w, statusFor(failure.Kind), body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
