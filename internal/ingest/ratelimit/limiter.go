package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Config holds token bucket settings for the request boundary.
type Config struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	WindowSeconds     int           `yaml:"window_seconds"`
	BurstSize         int           `yaml:"burst_size"`
	LimitBy           string        `yaml:"limit_by"` // "ip", "api_key", or "path"
	StaleAfter        time.Duration `yaml:"stale_after"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	ExemptPaths       []string      `yaml:"exempt_paths"`
}

// DefaultConfig returns the process defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerWindow: 100,
		WindowSeconds:     60,
		BurstSize:         100,
		LimitBy:           LimitByIP,
		StaleAfter:        time.Hour,
		SweepInterval:     5 * time.Minute,
		ExemptPaths:       []string{"/health", "/metrics"},
	}
}

// Result carries the admission decision metadata surfaced as
// X-RateLimit-* headers.
type Result struct {
	Limit     int
	Remaining int
	Reset     int64
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Limiter is a per-key token bucket shared by all request handlers.
// Buckets are created lazily and removed by the stale sweep.
type Limiter struct {
	mu         sync.Mutex
	cfg        Config
	buckets    map[string]*bucket
	refillRate float64
	now        func() time.Time
	log        *slog.Logger
}

// NewLimiter creates a limiter from config.
func NewLimiter(cfg Config) *Limiter {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = cfg.RequestsPerWindow
	}
	return &Limiter{
		cfg:        cfg,
		buckets:    make(map[string]*bucket),
		refillRate: float64(cfg.RequestsPerWindow) / float64(cfg.WindowSeconds),
		now:        time.Now,
		log:        slog.Default(),
	}
}

// Allow consumes one token for the key if available and reports the
// decision plus limit/remaining/reset metadata.
func (l *Limiter) Allow(key string) (bool, Result) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.cfg.BurstSize), lastRefill: now}
		l.buckets[key] = b
	}

	// Refill for elapsed time, capped at burst size.
	elapsed := now.Sub(b.lastRefill).Seconds()
	tokens := b.tokens + elapsed*l.refillRate
	if tokens > float64(l.cfg.BurstSize) {
		tokens = float64(l.cfg.BurstSize)
	}
	b.lastRefill = now

	allowed := tokens >= 1.0
	if allowed {
		tokens -= 1.0
	}
	b.tokens = tokens

	var reset time.Time
	if tokens < 0 {
		reset = now.Add(time.Duration(-tokens / l.refillRate * float64(time.Second)))
	} else {
		reset = now.Add(time.Duration(l.cfg.WindowSeconds) * time.Second)
	}

	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	return allowed, Result{
		Limit:     l.cfg.RequestsPerWindow,
		Remaining: remaining,
		Reset:     reset.Unix(),
	}
}

// Sweep runs the stale-bucket eviction loop until the context is done.
func (l *Limiter) Sweep(ctx context.Context) {
	interval := l.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweepOnce()
		}
	}
}

func (l *Limiter) sweepOnce() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > l.cfg.StaleAfter {
			delete(l.buckets, key)
			removed++
		}
	}
	if removed > 0 {
		l.log.Debug("Swept stale rate limit buckets", "removed", removed)
	}
}

// Len reports the live bucket count, for health and tests.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// LimitBy reports the configured key strategy.
func (l *Limiter) LimitBy() string {
	return l.cfg.LimitBy
}

// ExemptPaths reports the paths excluded from limiting.
func (l *Limiter) ExemptPaths() []string {
	return l.cfg.ExemptPaths
}
