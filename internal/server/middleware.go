package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/scryhq/ingestor/internal/ingest/metrics"
	"github.com/scryhq/ingestor/internal/ingest/ratelimit"
)

// openPaths are reachable without an API key.
var openPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// authMiddleware rejects requests without a valid X-API-Key header.
// When no keys are configured the API is open.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if len(s.cfg.APIKeys) == 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get("X-API-Key")
		for _, key := range s.cfg.APIKeys {
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}

		writeError(w, http.StatusUnauthorized, "authentication", "invalid or missing API key")
	})
}

// rateLimitMiddleware enforces the token bucket and stamps X-RateLimit-*
// headers on every admitted response.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}

	exempt := make(map[string]bool)
	for _, p := range s.limiter.ExemptPaths() {
		exempt[p] = true
	}
	keyFn := ratelimit.KeyFor(s.limiter.LimitBy())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		allowed, res := s.limiter.Allow(keyFn(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset, 10))

		if !allowed {
			metrics.RateLimitRejections.Inc()
			w.Header().Set("Retry-After", strconv.FormatInt(res.Reset, 10))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
