package ratelimit

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dskow/library-gateway/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestLimiter(rps float64, burst int, trusted []string) *Limiter {
	return New(config.RateLimitConfig{RequestsPerSecond: rps, BurstSize: burst}, trusted, discardLogger())
}

func TestMiddleware_AllowsWithinBurst(t *testing.T) {
	l := newTestLimiter(100, 5, nil)
	defer l.Stop()
	handler := l.Middleware()(okHandler())

	for i := 0; i < 5; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestMiddleware_RejectsOverBurst(t *testing.T) {
	l := newTestLimiter(0.001, 2, nil)
	defer l.Stop()
	handler := l.Middleware()(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, r)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	var resp map[string]any
	if err := json.Unmarshal(last.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["error_code"] != "GATEWAY_RATE_LIMIT_EXCEEDED" {
		t.Errorf("error_code = %v, want GATEWAY_RATE_LIMIT_EXCEEDED", resp["error_code"])
	}
}

func TestMiddleware_PerClientIsolation(t *testing.T) {
	l := newTestLimiter(0.001, 1, nil)
	defer l.Stop()
	handler := l.Middleware()(okHandler())

	// Exhaust the first client's bucket.
	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:1234"
		handler.ServeHTTP(httptest.NewRecorder(), r)
	}

	// A different client must still get through.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.2:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("second client: status = %d, want 200", w.Code)
	}
}

func TestClientIP_IgnoresXFFFromUntrustedPeer(t *testing.T) {
	l := newTestLimiter(100, 10, nil)
	defer l.Stop()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.50")

	if got := l.clientIP(r); got != "192.0.2.1" {
		t.Errorf("clientIP = %q, want 192.0.2.1", got)
	}
}

func TestClientIP_TrustsXFFFromTrustedPeer(t *testing.T) {
	l := newTestLimiter(100, 10, []string{"10.0.0.0/8"})
	defer l.Stop()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.50, 10.0.0.7")

	if got := l.clientIP(r); got != "203.0.113.50" {
		t.Errorf("clientIP = %q, want 203.0.113.50", got)
	}
}

func TestUpdateConfig_AppliesNewLimits(t *testing.T) {
	l := newTestLimiter(0.001, 1, nil)
	defer l.Stop()
	handler := l.Middleware()(okHandler())

	// Exhaust under the old limits.
	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:1234"
		handler.ServeHTTP(httptest.NewRecorder(), r)
	}

	l.UpdateConfig(config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("after reload: status = %d, want 200", w.Code)
	}
}
