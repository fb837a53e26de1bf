package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/bnolan/preact-kit/logcolors"

	log "github.com/sirupsen/logrus"
)

// APIKeyHeader carries the key for protected operational endpoints
const APIKeyHeader = "X-API-Key"

// OpsKeyMiddleware guards the operational endpoints (stats, metrics) of an
// app. Only paths listed in protected are checked; a trailing "*" matches a
// prefix. Pages and API routes are never gated. When required is set but no
// key is configured every request is let through with a warning.
func OpsKeyMiddleware(apiKey string, required bool, protected []string) func(http.Handler) http.Handler {
	exact := make(map[string]bool)
	var prefixes []string
	for _, p := range protected {
		if strings.HasSuffix(p, "*") {
			prefixes = append(prefixes, strings.TrimSuffix(p, "*"))
		} else {
			exact[p] = true
		}
	}

	isProtected := func(path string) bool {
		if exact[path] {
			return true
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		if !required {
			return next
		}
		if apiKey == "" {
			log.Warnf("%s Ops API key required but not configured, endpoints are open", logcolors.LogAPIKey)
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isProtected(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				log.Warnf("%s Rejected %s from %s", logcolors.LogAPIKey, r.URL.Path, r.RemoteAddr)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"a valid X-API-Key header is required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
