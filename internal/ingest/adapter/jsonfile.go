package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// JSONFileAdapter reads a JSON document from the local filesystem.
type JSONFileAdapter struct {
	cfg  SourceConfig
	path string
}

// NewJSONFileAdapter builds a JSON file adapter. Requires "path" in config.
func NewJSONFileAdapter(cfg SourceConfig) (Adapter, error) {
	path := cfg.String("path")
	if path == "" {
		return nil, domain.NewConfigurationError("json adapter requires a \"path\" setting", nil)
	}
	return &JSONFileAdapter{cfg: cfg, path: path}, nil
}

func (a *JSONFileAdapter) Collect(ctx context.Context) (any, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, domain.NewCollectionError(
			fmt.Sprintf("failed to read JSON file %s", a.path), err)
	}
	return data, nil
}

func (a *JSONFileAdapter) Validate(ctx context.Context, raw any) (domain.ValidationResult, error) {
	data := raw.([]byte)

	result := domain.ValidationResult{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
		Metrics:  map[string]any{"size_bytes": len(data)},
	}

	if len(data) == 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, "file is empty")
		return result, nil
	}
	if !json.Valid(data) {
		result.IsValid = false
		result.Errors = append(result.Errors, "content is not valid JSON")
		return result, nil
	}

	var top map[string]any
	if err := json.Unmarshal(data, &top); err == nil {
		result.Metrics["top_level_keys"] = len(top)
		if len(top) == 0 {
			result.Warnings = append(result.Warnings, "document has no top-level keys")
		}
	}
	return result, nil
}

func (a *JSONFileAdapter) Transform(ctx context.Context, raw any) (any, error) {
	var out any
	if err := json.Unmarshal(raw.([]byte), &out); err != nil {
		return nil, domain.NewTransformationError("failed to decode JSON document", err)
	}
	return out, nil
}

func (a *JSONFileAdapter) Cleanup(ctx context.Context, raw any) error {
	return nil
}
