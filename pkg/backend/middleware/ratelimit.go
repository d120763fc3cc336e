package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/cecil-the-coder/imagegen-kit/pkg/ratelimit"
)

// RateLimit rejects requests over the per-client limit with a 429 and a
// Retry-After header. The client key is taken from keyHeader when set,
// otherwise from the remote address without the port, so clients behind a
// proxy can be keyed by an identity header instead of the proxy's address.
func RateLimit(limiter *ratelimit.Limiter, keyHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r, keyHeader)
			decision := limiter.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if rlErr := decision.Err(key); rlErr != nil {
				retryAfter := int(decision.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"error": map[string]interface{}{
						"code":          "RATE_LIMITED",
						"message":       rlErr.Error(),
						"retry_after_s": retryAfter,
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request, keyHeader string) string {
	if keyHeader != "" {
		if v := r.Header.Get(keyHeader); v != "" {
			return v
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
