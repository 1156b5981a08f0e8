package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/withaibuild/site/internal/metrics"
	"github.com/withaibuild/site/internal/ratelimit"
	"github.com/withaibuild/site/pkg/logger"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	TrustProxy     bool     // Trust X-Forwarded-For header
	TrustedProxies []string // List of trusted proxy IPs
}

// RateLimitResponse is the JSON response for rate limited requests.
type RateLimitResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retry_after"`
}

// RateLimit returns a middleware that throttles requests per client IP with
// the given guard. Guard errors fail open.
func RateLimit(guard ratelimit.Guard, cfg RateLimitConfig, log *logger.Logger) Middleware {
	if log == nil {
		log = logger.Nop()
	}
	trustedSet := make(map[string]bool)
	for _, ip := range cfg.TrustedProxies {
		trustedSet[ip] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := "ip:" + clientIPForRateLimit(r, cfg.TrustProxy, trustedSet)

			decision, err := guard.Allow(r.Context(), identifier)
			if err != nil {
				log.Debug("rate limit check failed, allowing request", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, decision)

			if !decision.Allowed {
				metrics.RecordRateLimited()
				writeRateLimitResponse(w, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIPForRateLimit prefers the IP stored by the ClientIP middleware.
func clientIPForRateLimit(r *http.Request, trustProxy bool, trustedProxies map[string]bool) string {
	if ip := GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return extractClientIP(r, trustProxy, trustedProxies)
}

// retrySeconds rounds d up to whole seconds, at least one.
func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// setRateLimitHeaders sets the rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

	if !d.Allowed {
		retry := retrySeconds(d.RetryAfter)
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Duration(retry)*time.Second).Unix(), 10))
		w.Header().Set("Retry-After", strconv.Itoa(retry))
	}
}

// writeRateLimitResponse writes the 429 response.
func writeRateLimitResponse(w http.ResponseWriter, d *ratelimit.Decision) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(RateLimitResponse{
		Error:      "rate limit exceeded",
		Code:       "RATE_LIMIT_EXCEEDED",
		RetryAfter: retrySeconds(d.RetryAfter),
	})
}
