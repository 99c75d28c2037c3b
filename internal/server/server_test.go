package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scryhq/ingestor/internal/core/domain"
	"github.com/scryhq/ingestor/internal/ingest/adapter"
	"github.com/scryhq/ingestor/internal/ingest/breaker"
	"github.com/scryhq/ingestor/internal/ingest/orchestrator"
	"github.com/scryhq/ingestor/internal/ingest/ratelimit"
	"github.com/scryhq/ingestor/internal/ingest/retry"
)

type stubAdapter struct{ fail bool }

func (a *stubAdapter) Collect(context.Context) (any, error) {
	if a.fail {
		return nil, domain.NewCollectionError("upstream unavailable", nil)
	}
	return map[string]any{"ok": true}, nil
}

func (a *stubAdapter) Validate(context.Context, any) (domain.ValidationResult, error) {
	return domain.ValidationResult{IsValid: true}, nil
}

func (a *stubAdapter) Transform(_ context.Context, raw any) (any, error) { return raw, nil }

func (a *stubAdapter) Cleanup(context.Context, any) error { return nil }

type fakeQueue struct {
	tasks []*domain.Task
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, task *domain.Task, _ time.Duration) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

type serverOpts struct {
	cfg     Config
	limiter *ratelimit.Limiter
	queue   Enqueuer
	checks  map[string]HealthChecker
	failing bool
}

func newTestServer(t *testing.T, opts serverOpts) *Server {
	t.Helper()

	registry := adapter.NewRegistry()
	stub := &stubAdapter{fail: opts.failing}
	registry.Register("stub", func(adapter.SourceConfig) (adapter.Adapter, error) {
		return stub, nil
	})

	policy, err := retry.NewPolicy(true, 3, 1, 4, nil)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	orch := orchestrator.New(
		orchestrator.Config{MaxInflight: 4},
		registry,
		breaker.NewRegistry(breaker.DefaultConfig()),
		policy,
		nil,
		nil,
	)

	return NewServer(opts.cfg, orch, registry, opts.queue, opts.limiter, opts.checks)
}

func doJSON(t *testing.T, s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestIngestSuccess(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	w := doJSON(t, s, http.MethodPost, "/ingest",
		`{"adapter_type":"stub","source_config":{"source_id":"s1"}}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status        string                   `json:"status"`
		CorrelationID string                   `json:"correlation_id"`
		Metadata      domain.IngestionMetadata `json:"metadata"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.CorrelationID == "" {
		t.Error("correlation_id missing from response")
	}
	if resp.Metadata.SourceID != "s1" {
		t.Errorf("source_id = %q, want s1", resp.Metadata.SourceID)
	}
}

func TestIngestUnknownAdapterIs404(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	w := doJSON(t, s, http.MethodPost, "/ingest", `{"adapter_type":"nope"}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

func TestIngestCollectionFailureIs400(t *testing.T) {
	s := newTestServer(t, serverOpts{failing: true})

	w := doJSON(t, s, http.MethodPost, "/ingest", `{"adapter_type":"stub"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}

	var resp struct {
		RetryInSeconds int `json:"retry_in_seconds"`
		Report         struct {
			Classification string `json:"classification"`
		} `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Report.Classification != "collection" {
		t.Errorf("classification = %q", resp.Report.Classification)
	}
	if resp.RetryInSeconds != 1 {
		t.Errorf("retry_in_seconds = %d, want 1", resp.RetryInSeconds)
	}
}

func TestIngestRejectsBadBody(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing adapter", `{"source_config":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, s, http.MethodPost, "/ingest", tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, serverOpts{cfg: Config{APIKeys: []string{"secret"}}})

	w := doJSON(t, s, http.MethodPost, "/ingest", `{"adapter_type":"stub"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status = %d, want 401", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/ingest", `{"adapter_type":"stub"}`,
		map[string]string{"X-API-Key": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d, want 401", w.Code)
	}

	w = doJSON(t, s, http.MethodPost, "/ingest", `{"adapter_type":"stub"}`,
		map[string]string{"X-API-Key": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("valid key: status = %d, want 200: %s", w.Code, w.Body.String())
	}

	// Health stays open without a key.
	w = doJSON(t, s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: status = %d, want 200", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Enabled:           true,
		RequestsPerWindow: 2,
		WindowSeconds:     60,
		BurstSize:         2,
		LimitBy:           ratelimit.LimitByIP,
		ExemptPaths:       []string{"/health", "/metrics"},
	})
	s := newTestServer(t, serverOpts{limiter: limiter})

	for i := 0; i < 2; i++ {
		w := doJSON(t, s, http.MethodPost, "/ingest", `{"adapter_type":"stub"}`, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("request %d: limit header = %q", i, w.Header().Get("X-RateLimit-Limit"))
		}
	}

	w := doJSON(t, s, http.MethodPost, "/ingest", `{"adapter_type":"stub"}`, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining header = %q, want 0", w.Header().Get("X-RateLimit-Remaining"))
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing on denial")
	}

	// Exempt paths bypass the bucket even when it is empty.
	w = doJSON(t, s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("exempt path: status = %d, want 200", w.Code)
	}
}

func TestListAdapters(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	w := doJSON(t, s, http.MethodGet, "/ingest/adapters", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Adapters []string `json:"adapters"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Adapters) != 1 || resp.Adapters[0] != "stub" {
		t.Errorf("adapters = %v, want [stub]", resp.Adapters)
	}
}

func TestIngestAsync(t *testing.T) {
	t.Run("no queue configured", func(t *testing.T) {
		s := newTestServer(t, serverOpts{})
		w := doJSON(t, s, http.MethodPost, "/ingest/async", `{"adapter_type":"stub"}`, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
	})

	t.Run("accepted", func(t *testing.T) {
		q := &fakeQueue{}
		s := newTestServer(t, serverOpts{queue: q})

		w := doJSON(t, s, http.MethodPost, "/ingest/async", `{"adapter_type":"stub"}`, nil)
		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
		}
		if len(q.tasks) != 1 {
			t.Fatalf("enqueued %d tasks, want 1", len(q.tasks))
		}
		var resp struct {
			TaskID        string `json:"task_id"`
			CorrelationID string `json:"correlation_id"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.TaskID != q.tasks[0].ID {
			t.Errorf("task_id = %q, want %q", resp.TaskID, q.tasks[0].ID)
		}
		if resp.CorrelationID == "" {
			t.Error("correlation_id missing")
		}
	})

	t.Run("enqueue failure", func(t *testing.T) {
		q := &fakeQueue{err: errors.New("redis down")}
		s := newTestServer(t, serverOpts{queue: q})

		w := doJSON(t, s, http.MethodPost, "/ingest/async", `{"adapter_type":"stub"}`, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
	})
}

func TestHealthReportsDependencies(t *testing.T) {
	checks := map[string]HealthChecker{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return fmt.Errorf("connection refused") },
	}
	s := newTestServer(t, serverOpts{checks: checks})

	w := doJSON(t, s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	var resp struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Dependencies["postgres"] != "ok" {
		t.Errorf("postgres = %q, want ok", resp.Dependencies["postgres"])
	}
	if !strings.Contains(resp.Dependencies["redis"], "connection refused") {
		t.Errorf("redis = %q", resp.Dependencies["redis"])
	}
}
