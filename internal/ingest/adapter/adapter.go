// Package adapter defines the collect/validate/transform/cleanup contract
// that every format adapter implements, the registry that names them, and
// the Process harness the orchestrator drives.
package adapter

import (
	"context"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// Adapter is the four-operation pipeline contract for one source format.
// Implementations are thin wrappers around a parser or client and contribute
// no orchestration logic.
type Adapter interface {
	// Collect fetches raw data from the source. Fails with a collection error
	// on I/O, network, or source-configuration problems.
	Collect(ctx context.Context) (any, error)

	// Validate computes data-quality signals for the collected data. Quality
	// problems are reported inside the result, never raised; an error is
	// returned only for malformed validation-rule configuration.
	Validate(ctx context.Context, raw any) (domain.ValidationResult, error)

	// Transform produces the standardized output shape.
	Transform(ctx context.Context, raw any) (any, error)

	// Cleanup releases resources acquired during Collect. Best-effort: its
	// errors are logged by the harness, never propagated.
	Cleanup(ctx context.Context, raw any) error
}

// SourceConfig is the opaque per-attempt configuration handed to an adapter.
// The orchestrator copies it per attempt; adapters treat it as read-only.
type SourceConfig map[string]any

// String returns the string value for a key, or "" when absent or not a string.
func (c SourceConfig) String(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// StringOr returns the string value for a key, or def when absent.
func (c SourceConfig) StringOr(key, def string) string {
	if v := c.String(key); v != "" {
		return v
	}
	return def
}

// Bool returns the boolean value for a key, false when absent.
func (c SourceConfig) Bool(key string) bool {
	v, _ := c[key].(bool)
	return v
}

// RetryOverride returns the retry_policy override block, or nil.
func (c SourceConfig) RetryOverride() map[string]any {
	if v, ok := c["retry_policy"].(map[string]any); ok {
		return v
	}
	return nil
}

// SourceID returns the configured source identifier.
func (c SourceConfig) SourceID() string {
	return c.StringOr("source_id", "unknown")
}
