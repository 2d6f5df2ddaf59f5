package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler is a trivial handler used behind the middleware under test.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		apiKey     string
		authHeader string
		wantStatus int
	}{
		{
			name:       "auth disabled passes everything",
			apiKey:     "",
			authHeader: "",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid token",
			apiKey:     "secret",
			authHeader: "Bearer secret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "case-insensitive scheme",
			apiKey:     "secret",
			authHeader: "bearer secret",
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			apiKey:     "secret",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong token",
			apiKey:     "secret",
			authHeader: "Bearer wrong",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			apiKey:     "secret",
			authHeader: "secret",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := authMiddleware(tc.apiKey, okHandler)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/run", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("401 response missing WWW-Authenticate challenge")
			}
		})
	}
}

func TestUploadRequiresAuthWhenConfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, testDeps(), &Config{APIKey: "secret"})

	body, contentType := multipartBody(t, nil, "lease.txt", []byte("doc"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(s, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated upload: status = %d, want 401", rec.Code)
	}

	// Health stays open for orchestrator probes.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec = doRequest(s, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health with auth enabled: status = %d, want 200", rec.Code)
	}
}
