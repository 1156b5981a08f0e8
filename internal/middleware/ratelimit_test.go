package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withaibuild/site/internal/ratelimit"
)

// mockGuard implements ratelimit.Guard for testing.
type mockGuard struct {
	decision *ratelimit.Decision
	err      error
	calls    []string
}

func (m *mockGuard) Allow(ctx context.Context, identifier string) (*ratelimit.Decision, error) {
	m.calls = append(m.calls, identifier)
	return m.decision, m.err
}

func (m *mockGuard) Close() error {
	return nil
}

func allowAll() *mockGuard {
	return &mockGuard{decision: &ratelimit.Decision{Allowed: true, Remaining: 9, Limit: 10}}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("allows request when under limit", func(t *testing.T) {
		guard := allowAll()
		handlerCalled := false

		handler := RateLimit(guard, RateLimitConfig{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Empty(t, rec.Header().Get("Retry-After"))
		assert.Empty(t, rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("returns 429 when over limit", func(t *testing.T) {
		guard := &mockGuard{decision: &ratelimit.Decision{Allowed: false, RetryAfter: 30 * time.Second, Limit: 10}}
		handlerCalled := false

		handler := RateLimit(guard, RateLimitConfig{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/contact", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.False(t, handlerCalled, "handler should not be called when rate limited")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

		resetTime, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
		require.NoError(t, err)
		assert.Greater(t, resetTime, time.Now().Unix())

		var resp RateLimitResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "rate limit exceeded", resp.Error)
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", resp.Code)
		assert.Equal(t, 30, resp.RetryAfter)
	})

	t.Run("rounds retry up to whole seconds", func(t *testing.T) {
		for _, tc := range []struct {
			after time.Duration
			want  string
		}{
			{500 * time.Millisecond, "1"},
			{0, "1"},
			{1500 * time.Millisecond, "2"},
		} {
			guard := &mockGuard{decision: &ratelimit.Decision{Allowed: false, RetryAfter: tc.after, Limit: 10}}
			rec := httptest.NewRecorder()
			RateLimit(guard, RateLimitConfig{}, nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
			assert.Equal(t, tc.want, rec.Header().Get("Retry-After"), tc.after.String())
		}
	})

	t.Run("uses IP from context when available", func(t *testing.T) {
		guard := allowAll()

		handler := New(
			ClientIP(true, nil),
			RateLimit(guard, RateLimitConfig{}, nil),
		).Then(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:80"
		req.Header.Set("X-Forwarded-For", "203.0.113.195")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		require.Len(t, guard.calls, 1)
		assert.Equal(t, "ip:203.0.113.195", guard.calls[0])
	})

	t.Run("identifies client without ClientIP middleware", func(t *testing.T) {
		tests := []struct {
			name       string
			cfg        RateLimitConfig
			remoteAddr string
			headers    map[string]string
			want       string
		}{
			{"remote addr", RateLimitConfig{}, "192.168.1.1:12345", nil, "ip:192.168.1.1"},
			{"remote addr without port", RateLimitConfig{}, "192.168.1.1", nil, "ip:192.168.1.1"},
			{"forwarded ignored when untrusted", RateLimitConfig{}, "192.168.1.1:12345",
				map[string]string{"X-Forwarded-For": "203.0.113.195"}, "ip:192.168.1.1"},
			{"forwarded when trusted", RateLimitConfig{TrustProxy: true}, "10.0.0.1:80",
				map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, "ip:203.0.113.195"},
			{"real ip when trusted", RateLimitConfig{TrustProxy: true}, "10.0.0.1:80",
				map[string]string{"X-Real-IP": "203.0.113.100"}, "ip:203.0.113.100"},
			{"empty forwarded falls back", RateLimitConfig{TrustProxy: true}, "10.0.0.1:80",
				map[string]string{"X-Forwarded-For": "  ,  "}, "ip:10.0.0.1"},
			{"untrusted proxy", RateLimitConfig{TrustProxy: true, TrustedProxies: []string{"10.0.0.1"}}, "192.168.1.1:12345",
				map[string]string{"X-Forwarded-For": "203.0.113.195"}, "ip:192.168.1.1"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				guard := allowAll()
				req := httptest.NewRequest(http.MethodGet, "/test", nil)
				req.RemoteAddr = tt.remoteAddr
				for k, v := range tt.headers {
					req.Header.Set(k, v)
				}

				RateLimit(guard, tt.cfg, nil)(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

				require.Len(t, guard.calls, 1)
				assert.Equal(t, tt.want, guard.calls[0])
			})
		}
	})

	t.Run("fails open on guard error", func(t *testing.T) {
		guard := &mockGuard{err: context.DeadlineExceeded}
		handlerCalled := false

		handler := RateLimit(guard, RateLimitConfig{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.True(t, handlerCalled, "should fail open on guard error")
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("skips exempt requests", func(t *testing.T) {
		guard := &mockGuard{decision: &ratelimit.Decision{Allowed: false, RetryAfter: time.Second}}
		isHealth := func(r *http.Request) bool { return r.URL.Path == "/health" }
		handler := Unless(isHealth, RateLimit(guard, RateLimitConfig{}, nil))(okHandler())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, guard.calls)
	})
}

func TestRateLimit_WithIPGuard(t *testing.T) {
	guard := ratelimit.NewIPGuard(ratelimit.GuardConfig{RPS: 0.001, Burst: 2, IdleTTL: time.Minute})
	defer guard.Close()

	handler := RateLimit(guard, RateLimitConfig{}, nil)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/careers", nil)
		req.RemoteAddr = "198.51.100.5:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
