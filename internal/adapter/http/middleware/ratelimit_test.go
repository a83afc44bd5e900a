package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func limitedHandler(rl *RateLimiter) http.Handler {
	return rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	handler := limitedHandler(NewRateLimiter(1, 2))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestFrom("10.0.0.1:5000"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.1:5000"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst exhausted, got %d", rec.Code)
	}
}

func TestRateLimiterTracksClientsSeparately(t *testing.T) {
	handler := limitedHandler(NewRateLimiter(1, 1))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.1:5000"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first client to pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestFrom("10.0.0.2:5000"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected second client to pass, got %d", rec.Code)
	}
}

func TestRateLimiterPruneDropsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := limitedHandler(rl)

	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.1:5000"))
	if len(rl.clients) != 1 {
		t.Fatalf("expected one tracked client, got %d", len(rl.clients))
	}

	time.Sleep(5 * time.Millisecond)
	rl.Prune(time.Millisecond)

	if len(rl.clients) != 0 {
		t.Fatalf("expected idle client to be pruned, got %d", len(rl.clients))
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := requestFrom("10.0.0.1:5000")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")

	if ip := clientIP(req); ip != "203.0.113.7" {
		t.Fatalf("expected forwarded IP, got %s", ip)
	}
}
