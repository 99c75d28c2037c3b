package retry

import (
	"fmt"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// Resolve applies a per-source override block on top of the process default.
// Overrides are validated eagerly so a misconfigured source fails its task
// immediately with a configuration error instead of silently falling back.
//
// The override block is the "retry_policy" entry of a source config:
//
//	retry_policy:
//	  enabled: true
//	  max_attempts: 3
//	  backoff_seconds: 1
//	  max_backoff_seconds: 4
//	  retryable_error_kinds: [collection]
func Resolve(defaults Policy, override map[string]any) (Policy, error) {
	if override == nil {
		return defaults, nil
	}

	enabled := defaults.Enabled
	if raw, ok := override["enabled"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return Policy{}, domain.NewConfigurationError(
				"retry_policy.enabled must be a boolean", nil)
		}
		enabled = b
	}

	maxAttempts := defaults.MaxAttempts
	if raw, ok := override["max_attempts"]; ok {
		n, err := intField("max_attempts", raw)
		if err != nil {
			return Policy{}, err
		}
		maxAttempts = n
	}

	backoff := defaults.BackoffSeconds
	if raw, ok := override["backoff_seconds"]; ok {
		f, err := floatField("backoff_seconds", raw)
		if err != nil {
			return Policy{}, err
		}
		backoff = f
	}

	maxBackoff := defaults.MaxBackoffSeconds
	if raw, ok := override["max_backoff_seconds"]; ok {
		f, err := floatField("max_backoff_seconds", raw)
		if err != nil {
			return Policy{}, err
		}
		maxBackoff = f
	}

	kinds := make([]domain.ErrorKind, 0)
	if raw, ok := override["retryable_error_kinds"]; ok {
		names, err := stringSliceField("retryable_error_kinds", raw)
		if err != nil {
			return Policy{}, err
		}
		for _, name := range names {
			kind, err := domain.ParseErrorKind(name)
			if err != nil {
				return Policy{}, domain.NewConfigurationError(
					fmt.Sprintf("retry_policy.retryable_error_kinds: %v", err), nil)
			}
			kinds = append(kinds, kind)
		}
	} else {
		for _, name := range defaults.RetryableKinds() {
			kinds = append(kinds, domain.ErrorKind(name))
		}
	}

	policy, err := NewPolicy(enabled, maxAttempts, backoff, maxBackoff, kinds)
	if err != nil {
		return Policy{}, domain.NewConfigurationError("invalid retry_policy override", err)
	}
	return policy, nil
}

func floatField(name string, raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	default:
		return 0, domain.NewConfigurationError(
			fmt.Sprintf("retry_policy.%s must be numeric", name), nil)
	}
	if f <= 0 {
		return 0, domain.NewConfigurationError(
			fmt.Sprintf("retry_policy.%s must be greater than zero", name), nil)
	}
	return f, nil
}

func intField(name string, raw any) (int, error) {
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != float64(int(v)) {
			return 0, domain.NewConfigurationError(
				fmt.Sprintf("retry_policy.%s must be an integer", name), nil)
		}
		n = int(v)
	default:
		return 0, domain.NewConfigurationError(
			fmt.Sprintf("retry_policy.%s must be an integer", name), nil)
	}
	if n < 0 {
		return 0, domain.NewConfigurationError(
			fmt.Sprintf("retry_policy.%s must be non-negative", name), nil)
	}
	return n, nil
}

func stringSliceField(name string, raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		if strs, ok := raw.([]string); ok {
			return strs, nil
		}
		return nil, domain.NewConfigurationError(
			fmt.Sprintf("retry_policy.%s must be a list of strings", name), nil)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, domain.NewConfigurationError(
				fmt.Sprintf("retry_policy.%s entries must be strings", name), nil)
		}
		out = append(out, s)
	}
	return out, nil
}
