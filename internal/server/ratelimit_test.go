package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 3, discardLogger())
	defer stop()
	h := rl.middleware(okHandler)

	for i := range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/run", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
}

func TestRateLimiterRejectsBeyondBurst(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 2, discardLogger())
	defer stop()
	h := rl.middleware(okHandler)

	var last *httptest.ResponseRecorder
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/run", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestRateLimiterPerIPIsolation(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, discardLogger())
	defer stop()
	h := rl.middleware(okHandler)

	// Exhaust the first IP's bucket.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/run", nil)
	req.RemoteAddr = "10.0.0.3:1234"
	h.ServeHTTP(httptest.NewRecorder(), req)

	// A different IP has its own bucket.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/run", nil)
	req.RemoteAddr = "10.0.0.4:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("second IP: status = %d, want 200", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want string
	}{
		{"10.0.0.1:1234", "10.0.0.1"},
		{"[::1]:8080", "[::1]"},
		{"no-port", "no-port"},
	}

	for _, tc := range tests {
		r := &http.Request{RemoteAddr: tc.addr}
		if got := clientIP(r); got != tc.want {
			t.Errorf("clientIP(%q) = %q, want %q", tc.addr, got, tc.want)
		}
	}
}
