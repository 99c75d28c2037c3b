package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scryhq/ingestor/internal/core/domain"
	"github.com/scryhq/ingestor/internal/ingest/adapter"
	"github.com/scryhq/ingestor/internal/ingest/orchestrator"
	"github.com/scryhq/ingestor/internal/ingest/ratelimit"
)

// Config holds HTTP server configuration.
type Config struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	APIKeys        []string      `yaml:"api_keys"`
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		RequestTimeout: 60 * time.Second,
	}
}

// Enqueuer accepts tasks for asynchronous execution. Nil when the queue
// is not configured; the async endpoint then reports unavailability.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *domain.Task, delay time.Duration) error
}

// HealthChecker reports dependency liveness.
type HealthChecker func(ctx context.Context) error

// Server exposes the ingestion API.
type Server struct {
	cfg      Config
	orch     *orchestrator.Orchestrator
	registry *adapter.Registry
	queue    Enqueuer
	limiter  *ratelimit.Limiter
	checks   map[string]HealthChecker
	server   *http.Server
	log      *slog.Logger
}

// NewServer creates the ingestion API server.
func NewServer(
	cfg Config,
	orch *orchestrator.Orchestrator,
	registry *adapter.Registry,
	queue Enqueuer,
	limiter *ratelimit.Limiter,
	checks map[string]HealthChecker,
) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultConfig().Port
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}

	s := &Server{
		cfg:      cfg,
		orch:     orch,
		registry: registry,
		queue:    queue,
		limiter:  limiter,
		checks:   checks,
		log:      slog.Default().With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("POST /ingest/async", s.handleIngestAsync)
	mux.HandleFunc("GET /ingest/adapters", s.handleAdapters)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := s.rateLimitMiddleware(s.authMiddleware(mux))
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info("Starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the configured handler chain, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

type ingestRequest struct {
	AdapterType   string         `json:"adapter_type"`
	SourceConfig  map[string]any `json:"source_config"`
	CorrelationID string         `json:"correlation_id"`
}

func (s *Server) decodeIngest(w http.ResponseWriter, r *http.Request) (*domain.Task, bool) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "request body is not valid JSON")
		return nil, false
	}
	if req.AdapterType == "" {
		writeError(w, http.StatusBadRequest, "validation", "adapter_type is required")
		return nil, false
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return &domain.Task{
		ID:            uuid.NewString(),
		AdapterType:   req.AdapterType,
		SourceConfig:  req.SourceConfig,
		CorrelationID: correlationID,
	}, true
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	task, ok := s.decodeIngest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	out := s.orch.Execute(ctx, task)
	if out.Status == "success" {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "success",
			"correlation_id": out.Payload.Metadata.CorrelationID,
			"metadata":       out.Payload.Metadata,
			"validation":     out.Payload.Validation.Summary(),
		})
		return
	}

	status := statusForReport(out.Report, out.Err)
	resp := map[string]any{
		"status":         "error",
		"correlation_id": task.CorrelationID,
		"report":         out.Report,
	}
	if out.Redeliver {
		resp["retry_in_seconds"] = out.Countdown
	}
	if out.Report.Classification == domain.KindCircuitOpen {
		if reopen, ok := out.Report.Details["reopen_at"].(string); ok {
			w.Header().Set("Retry-After", reopen)
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleIngestAsync(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "unexpected", "task queue is not configured")
		return
	}

	task, ok := s.decodeIngest(w, r)
	if !ok {
		return
	}

	if err := s.queue.Enqueue(r.Context(), task, 0); err != nil {
		s.log.Error("Failed to enqueue task", "error", err)
		writeError(w, http.StatusServiceUnavailable, "unexpected", "failed to enqueue task")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":         "accepted",
		"task_id":        task.ID,
		"correlation_id": task.CorrelationID,
	})
}

func (s *Server) handleAdapters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"adapters": s.registry.List(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
		} else {
			deps[name] = "ok"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":       status,
		"dependencies": deps,
	})
}

// statusForReport maps an error classification to an HTTP status code.
func statusForReport(rep *domain.TaskErrorReport, err error) int {
	switch rep.Classification {
	case domain.KindConfiguration:
		var ing *domain.IngestError
		if errors.As(err, &ing) {
			if _, ok := ing.Details["adapter_type"]; ok {
				return http.StatusNotFound
			}
		}
		return http.StatusBadRequest
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthentication:
		return http.StatusUnauthorized
	case domain.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case domain.KindCollection:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, classification, message string) {
	writeJSON(w, status, map[string]any{
		"status":         "error",
		"classification": classification,
		"message":        message,
	})
}
