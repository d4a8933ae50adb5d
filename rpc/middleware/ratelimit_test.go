package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1})
	throttled := 0
	limiter.OnThrottle(func(*http.Request) { throttled++ })
	handler := limiter.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
	if throttled != 1 {
		t.Fatalf("expected throttle hook once, got %d", throttled)
	}
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1})
	handler := limiter.Middleware(okHandler())

	for _, addr := range []string{"10.0.0.1:1000", "10.0.0.2:1000"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected %s to succeed, got %d", addr, res.Code)
		}
	}
}

func TestRateLimiterIgnoresForwardedFor(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1})
	handler := limiter.Middleware(okHandler())

	for i, forwarded := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.9:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if i == 1 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("spoofed forwarding header bypassed limiter: %d", res.Code)
		}
	}
}

func TestRateLimiterRefills(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1})
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }

	if !limiter.Allow("a") {
		t.Fatalf("expected first token")
	}
	if limiter.Allow("a") {
		t.Fatalf("expected bucket to be empty")
	}
	now = now.Add(1100 * time.Millisecond)
	if !limiter.Allow("a") {
		t.Fatalf("expected bucket to refill")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{})
	for i := 0; i < 100; i++ {
		if !limiter.Allow("a") {
			t.Fatalf("disabled limiter rejected request %d", i)
		}
	}
}
