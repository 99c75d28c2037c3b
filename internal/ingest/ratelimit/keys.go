package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// Key strategies. Selected per deployment, mutually exclusive per request.
const (
	LimitByIP     = "ip"
	LimitByAPIKey = "api_key"
	LimitByPath   = "path"
)

// KeyFunc derives the rate-limit key from a request.
type KeyFunc func(r *http.Request) string

// KeyFor returns the key derivation for the configured strategy.
// Unknown strategies fall back to IP keying.
func KeyFor(strategy string) KeyFunc {
	switch strategy {
	case LimitByAPIKey:
		return apiKeyKey
	case LimitByPath:
		return pathKey
	default:
		return ipKey
	}
}

func ipKey(r *http.Request) string {
	// Honor the forwarded-for header, first hop only.
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return "ip:" + first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func apiKeyKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "api_key:" + key
	}
	return ipKey(r)
}

func pathKey(r *http.Request) string {
	return "path:" + r.URL.Path
}
