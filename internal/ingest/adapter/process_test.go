package adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// recordingAdapter tracks lifecycle invocations for harness tests.
type recordingAdapter struct {
	collectErr   error
	validateErr  error
	transformErr error
	cleanupErr   error

	raw          any
	cleanupCalls int
	cleanupArg   any
}

func (a *recordingAdapter) Collect(ctx context.Context) (any, error) {
	if a.collectErr != nil {
		return nil, a.collectErr
	}
	a.raw = "raw-data"
	return a.raw, nil
}

func (a *recordingAdapter) Validate(ctx context.Context, raw any) (domain.ValidationResult, error) {
	if a.validateErr != nil {
		return domain.ValidationResult{}, a.validateErr
	}
	return domain.ValidationResult{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
		Metrics:  map[string]any{"checked": true},
	}, nil
}

func (a *recordingAdapter) Transform(ctx context.Context, raw any) (any, error) {
	if a.transformErr != nil {
		return nil, a.transformErr
	}
	return "transformed", nil
}

func (a *recordingAdapter) Cleanup(ctx context.Context, raw any) error {
	a.cleanupCalls++
	a.cleanupArg = raw
	return a.cleanupErr
}

func TestProcessSuccess(t *testing.T) {
	a := &recordingAdapter{}
	cfg := SourceConfig{"source_id": "src-1", "correlation_id": "corr-1"}

	payload, elapsed, err := Process(context.Background(), "test", a, cfg)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if payload.Data != "transformed" {
		t.Errorf("Data = %v", payload.Data)
	}
	if payload.Metadata.AdapterType != "test" || payload.Metadata.SourceID != "src-1" {
		t.Errorf("metadata = %+v", payload.Metadata)
	}
	if payload.Metadata.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q", payload.Metadata.CorrelationID)
	}
	if payload.Metadata.ProcessingMode != "local" {
		t.Errorf("ProcessingMode = %q, want local", payload.Metadata.ProcessingMode)
	}
	if elapsed < 0 {
		t.Errorf("elapsed = %v", elapsed)
	}
	if a.cleanupCalls != 1 {
		t.Errorf("cleanup calls = %d, want 1", a.cleanupCalls)
	}
}

func TestProcessCleanupRunsOnTransformFailure(t *testing.T) {
	a := &recordingAdapter{
		transformErr: domain.NewTransformationError("bad shape", nil),
	}

	_, _, err := Process(context.Background(), "test", a, SourceConfig{})
	if domain.KindOf(err) != domain.KindTransformation {
		t.Fatalf("error kind = %s, want transformation", domain.KindOf(err))
	}
	if a.cleanupCalls != 1 {
		t.Errorf("cleanup calls = %d, want exactly 1", a.cleanupCalls)
	}
	if a.cleanupArg != a.raw {
		t.Errorf("cleanup received %v, want the collected value %v", a.cleanupArg, a.raw)
	}
}

func TestProcessCleanupRunsOnValidateFailure(t *testing.T) {
	a := &recordingAdapter{
		validateErr: domain.NewValidationError("broken rule config", nil),
	}

	_, _, err := Process(context.Background(), "test", a, SourceConfig{})
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("error kind = %s, want validation", domain.KindOf(err))
	}
	if a.cleanupCalls != 1 {
		t.Errorf("cleanup calls = %d, want 1", a.cleanupCalls)
	}
}

func TestProcessNoCleanupWhenCollectFails(t *testing.T) {
	a := &recordingAdapter{
		collectErr: domain.NewCollectionError("unreachable", nil),
	}

	_, _, err := Process(context.Background(), "test", a, SourceConfig{})
	if domain.KindOf(err) != domain.KindCollection {
		t.Fatalf("error kind = %s, want collection", domain.KindOf(err))
	}
	if a.cleanupCalls != 0 {
		t.Errorf("cleanup calls = %d, want 0 when collect never produced data", a.cleanupCalls)
	}
}

func TestProcessCleanupErrorIsSwallowed(t *testing.T) {
	a := &recordingAdapter{cleanupErr: errors.New("close failed")}

	_, _, err := Process(context.Background(), "test", a, SourceConfig{})
	if err != nil {
		t.Errorf("cleanup failure must not propagate, got %v", err)
	}
}

func TestProcessCloudMode(t *testing.T) {
	a := &recordingAdapter{}
	payload, _, err := Process(context.Background(), "test", a, SourceConfig{
		"use_cloud_processing": true,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if payload.Metadata.ProcessingMode != "cloud" {
		t.Errorf("ProcessingMode = %q, want cloud", payload.Metadata.ProcessingMode)
	}
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	t.Run("lists registered adapters", func(t *testing.T) {
		got := r.List()
		want := []string{"csv", "json", "rest"}
		if len(got) != len(want) {
			t.Fatalf("List() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("unknown adapter", func(t *testing.T) {
		_, err := r.New("pdf", SourceConfig{})
		if domain.KindOf(err) != domain.KindConfiguration {
			t.Errorf("error kind = %s, want configuration", domain.KindOf(err))
		}
	})

	t.Run("factory validates config", func(t *testing.T) {
		_, err := r.New("json", SourceConfig{})
		if domain.KindOf(err) != domain.KindConfiguration {
			t.Errorf("missing path: kind = %s, want configuration", domain.KindOf(err))
		}
	})
}

func TestJSONFileAdapter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.json")
	if err := os.WriteFile(path, []byte(`{"name":"scryer","count":3}`), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := NewJSONFileAdapter(SourceConfig{"path": path, "source_id": "json-test"})
	if err != nil {
		t.Fatalf("NewJSONFileAdapter: %v", err)
	}

	payload, _, err := Process(context.Background(), "json", a, SourceConfig{
		"path": path, "source_id": "json-test",
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !payload.Validation.IsValid {
		t.Errorf("validation failed: %v", payload.Validation.Errors)
	}
	doc, ok := payload.Data.(map[string]any)
	if !ok {
		t.Fatalf("Data type = %T", payload.Data)
	}
	if doc["name"] != "scryer" {
		t.Errorf("doc.name = %v", doc["name"])
	}
}

func TestJSONFileAdapterInvalidContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte(`{"name":`), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := NewJSONFileAdapter(SourceConfig{"path": path})
	if err != nil {
		t.Fatal(err)
	}

	result, err := a.Validate(context.Background(), []byte(`{"name":`))
	if err != nil {
		t.Fatalf("Validate must report quality problems, not raise: %v", err)
	}
	if result.IsValid {
		t.Error("invalid JSON reported as valid")
	}
}

func TestCSVFileAdapter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.csv")
	content := "name,age\nalice,30\nbob,25\ncarol\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := NewCSVFileAdapter(SourceConfig{"path": path})
	if err != nil {
		t.Fatalf("NewCSVFileAdapter: %v", err)
	}

	payload, _, err := Process(context.Background(), "csv", a, SourceConfig{"path": path})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if payload.Validation.Metrics["row_count"] != 4 {
		t.Errorf("row_count = %v, want 4", payload.Validation.Metrics["row_count"])
	}
	if len(payload.Validation.Warnings) == 0 {
		t.Error("expected ragged-row warning")
	}

	records, ok := payload.Data.([]map[string]string)
	if !ok {
		t.Fatalf("Data type = %T", payload.Data)
	}
	if len(records) != 3 {
		t.Fatalf("record count = %d, want 3", len(records))
	}
	if records[0]["name"] != "alice" || records[0]["age"] != "30" {
		t.Errorf("records[0] = %v", records[0])
	}
	if records[2]["age"] != "" {
		t.Errorf("short row should fill empty string, got %q", records[2]["age"])
	}
}

func TestCSVAdapterMissingFile(t *testing.T) {
	a, err := NewCSVFileAdapter(SourceConfig{"path": "/does/not/exist.csv"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = a.Collect(context.Background())
	if domain.KindOf(err) != domain.KindCollection {
		t.Errorf("error kind = %s, want collection", domain.KindOf(err))
	}
}

func TestRESTAdapterConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  SourceConfig
	}{
		{"missing url", SourceConfig{}},
		{"non-http url", SourceConfig{"url": "ftp://example.com/data"}},
		{"bad timeout", SourceConfig{"url": "https://example.com", "timeout_seconds": "fast"}},
		{"negative timeout", SourceConfig{"url": "https://example.com", "timeout_seconds": -1}},
		{"non-string header", SourceConfig{
			"url":     "https://example.com",
			"headers": map[string]any{"X-Token": 99},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRESTAdapter(tt.cfg); domain.KindOf(err) != domain.KindConfiguration {
				t.Errorf("error kind = %s, want configuration", domain.KindOf(err))
			}
		})
	}
}
