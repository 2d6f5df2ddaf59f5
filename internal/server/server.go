// Package server implements the HTTP server that exposes the document QA
// API: upload, question answering, summarization, and risk analysis, plus
// health, readiness, and metrics endpoints.
// The server is started by the `clauselens serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clauselens/clauselens-go/internal/logging"
)

// New constructs a Server from the provided collaborators and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	switch {
	case deps.Extractor == nil:
		return nil, fmt.Errorf("server: extractor must not be nil")
	case deps.Chunker == nil:
		return nil, fmt.Errorf("server: chunker must not be nil")
	case deps.Indexer == nil:
		return nil, fmt.Errorf("server: indexer must not be nil")
	case deps.Retriever == nil:
		return nil, fmt.Errorf("server: retriever must not be nil")
	case deps.Answerer == nil:
		return nil, fmt.Errorf("server: answerer must not be nil")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("server: session store must not be nil")
	}

	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a multi-question LLM round trip.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(reg),
	}

	if cfg.APIKey == "" {
		s.log.Warn("api authentication disabled: CLAUSELENS_API_KEY is not set")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	mux := http.NewServeMux()

	// Document endpoints are rate limited and, when an API key is configured,
	// require Bearer auth. Health, readiness, and metrics stay open so
	// orchestrators and scrapers can reach them.
	protect := func(pattern, name string, h http.HandlerFunc) {
		mux.Handle(pattern, authMiddleware(cfg.APIKey, rl.middleware(s.instrument(name, h))))
	}
	protect("POST /api/v1/upload", "upload", s.handleUpload)
	protect("POST /api/v1/run", "run", s.handleRun)
	protect("POST /api/v1/summarize", "summarize", s.handleSummarize)
	protect("POST /api/v1/analyze/risks", "analyze_risks", s.handleAnalyzeRisks)

	mux.Handle("GET /api/v1/health", s.instrument("health", s.handleHealth))
	mux.Handle("GET /api/v1/ready", s.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      corsMiddleware(requestLogger(s.log, mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler, including the full middleware
// chain. Used by httptest-based tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth handles GET /api/v1/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
