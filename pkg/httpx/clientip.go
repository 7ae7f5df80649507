package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller's address through the proxy-header precedence
// chain: trusted edge header, then X-Forwarded-For, then X-Real-IP, then the
// connection address. Rate limiting and CSRF session derivation both key off
// this value, so the precedence order must stay consistent across gates.
func ClientIP(r *http.Request) string {
	// Edge-terminated deployments set this from the TLS terminator; it wins
	// over anything a client could forge further down the chain.
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	// X-Forwarded-For is a comma-separated list; the first entry is the
	// original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if parts := strings.Split(xff, ","); len(parts) > 0 {
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
