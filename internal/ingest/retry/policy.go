package retry

import (
	"fmt"
	"math"

	"github.com/scryhq/ingestor/internal/core/domain"
)

// Policy encapsulates redelivery behaviour for failed ingestion attempts.
// Immutable once constructed; build through NewPolicy or Resolve.
type Policy struct {
	Enabled           bool
	MaxAttempts       int
	BackoffSeconds    float64
	MaxBackoffSeconds float64
	retryableKinds    map[domain.ErrorKind]struct{}
}

// NewPolicy validates boundaries and constructs a policy. An empty kinds
// slice means only collection errors are retryable (the process default).
func NewPolicy(
	enabled bool,
	maxAttempts int,
	backoffSeconds, maxBackoffSeconds float64,
	retryableKinds []domain.ErrorKind,
) (Policy, error) {
	if maxAttempts < 0 {
		return Policy{}, fmt.Errorf("max_attempts must be non-negative")
	}
	if backoffSeconds <= 0 {
		return Policy{}, fmt.Errorf("backoff_seconds must be greater than zero")
	}
	if maxBackoffSeconds <= 0 {
		return Policy{}, fmt.Errorf("max_backoff_seconds must be greater than zero")
	}
	if maxBackoffSeconds < backoffSeconds {
		return Policy{}, fmt.Errorf("max_backoff_seconds must be >= backoff_seconds")
	}

	if len(retryableKinds) == 0 {
		retryableKinds = []domain.ErrorKind{domain.KindCollection}
	}
	kinds := make(map[domain.ErrorKind]struct{}, len(retryableKinds))
	for _, k := range retryableKinds {
		kinds[k] = struct{}{}
	}

	return Policy{
		Enabled:           enabled,
		MaxAttempts:       maxAttempts,
		BackoffSeconds:    backoffSeconds,
		MaxBackoffSeconds: maxBackoffSeconds,
		retryableKinds:    kinds,
	}, nil
}

// ShouldRetry reports whether the supplied error is eligible for redelivery.
// Circuit-open rejections are never retried; the breaker re-admits on its own
// once the cooldown elapses.
func (p Policy) ShouldRetry(err error) bool {
	if !p.Enabled {
		return false
	}
	kind := domain.KindOf(err)
	if kind == domain.KindCircuitOpen {
		return false
	}
	_, ok := p.retryableKinds[kind]
	return ok
}

// NextCountdown computes the redelivery delay in whole seconds for the given
// zero-based retry number. The delay doubles per retry and is clamped to
// MaxBackoffSeconds, then truncated.
func (p Policy) NextCountdown(retryNumber int) int {
	exponent := retryNumber
	if exponent < 0 {
		exponent = 0
	}
	delay := p.BackoffSeconds * math.Pow(2, float64(exponent))
	return int(math.Min(delay, p.MaxBackoffSeconds))
}

// RetryableKinds returns the configured kinds, for reports and logs.
func (p Policy) RetryableKinds() []string {
	kinds := make([]string, 0, len(p.retryableKinds))
	for k := range p.retryableKinds {
		kinds = append(kinds, string(k))
	}
	return kinds
}

// Describe returns a serializable view for persistence and audit trails.
func (p Policy) Describe() map[string]any {
	return map[string]any{
		"enabled":             p.Enabled,
		"max_attempts":        p.MaxAttempts,
		"backoff_seconds":     p.BackoffSeconds,
		"max_backoff_seconds": p.MaxBackoffSeconds,
		"retryable_kinds":     p.RetryableKinds(),
	}
}
