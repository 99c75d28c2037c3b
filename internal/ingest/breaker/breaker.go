package breaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/scryhq/ingestor/internal/core/domain"
	"github.com/scryhq/ingestor/internal/ingest/metrics"
)

// Config holds circuit breaker thresholds. All values come from
// configuration, never hardcoded by callers.
type Config struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	FailureWindow    time.Duration `yaml:"failure_window"`
	ResetCooldown    time.Duration `yaml:"reset_cooldown"`
}

// DefaultConfig mirrors the process-wide defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureWindow:    5 * time.Minute,
		ResetCooldown:    10 * time.Minute,
	}
}

type state struct {
	failures  []time.Time
	openUntil time.Time
}

// Registry tracks per-adapter failure windows and gates execution.
// All state is process-local and guarded by a single mutex.
type Registry struct {
	mu     sync.Mutex
	cfg    Config
	states map[string]*state
	now    func() time.Time
	log    *slog.Logger
}

// NewRegistry creates a circuit breaker registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:    cfg,
		states: make(map[string]*state),
		now:    time.Now,
		log:    slog.Default(),
	}
}

func (r *Registry) get(adapterType string) *state {
	s, ok := r.states[adapterType]
	if !ok {
		s = &state{}
		r.states[adapterType] = s
	}
	return s
}

// EnsureAvailable returns a CircuitOpenError while the adapter circuit is
// open. Cooldown expiry clears the open marker and the failure history so the
// adapter starts from a fresh window.
func (r *Registry) EnsureAvailable(adapterType string) error {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(adapterType)
	if s.openUntil.IsZero() {
		return nil
	}
	if !s.openUntil.After(now) {
		s.openUntil = time.Time{}
		s.failures = s.failures[:0]
		metrics.CircuitOpen.WithLabelValues(adapterType).Set(0)
		return nil
	}
	return &domain.CircuitOpenError{AdapterType: adapterType, ReopenAt: s.openUntil}
}

// RecordFailure appends a failure, evicts entries outside the window, and
// opens the circuit when the threshold is reached.
func (r *Registry) RecordFailure(adapterType string) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(adapterType)
	s.failures = append(s.failures, now)

	kept := s.failures[:0]
	for _, ts := range s.failures {
		if now.Sub(ts) <= r.cfg.FailureWindow {
			kept = append(kept, ts)
		}
	}
	s.failures = kept

	if len(s.failures) >= r.cfg.FailureThreshold {
		s.openUntil = now.Add(r.cfg.ResetCooldown)
		metrics.CircuitOpen.WithLabelValues(adapterType).Set(1)
		r.log.Error("Circuit breaker opened",
			"adapter", adapterType,
			"failures", len(s.failures),
			"open_until", s.openUntil.Format(time.RFC3339),
		)
	}
}

// RecordSuccess clears failure history and any open marker unconditionally.
func (r *Registry) RecordSuccess(adapterType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[adapterType]
	if !ok {
		return
	}
	s.failures = s.failures[:0]
	s.openUntil = time.Time{}
	metrics.CircuitOpen.WithLabelValues(adapterType).Set(0)
}

// IsOpen reports whether the circuit is currently open, for metrics and health.
func (r *Registry) IsOpen(adapterType string) bool {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[adapterType]
	return ok && s.openUntil.After(now)
}

// Reset drops all circuits.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = make(map[string]*state)
}
