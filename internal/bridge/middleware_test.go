package bridge

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soyeahso/supportline/internal/logging"
	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

func TestLoggingMiddleware(t *testing.T) {
	handler := loggingMiddleware(okHandler, logging.New(nil, "silent"))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := requestIDMiddleware(okHandler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "listing-42")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "listing-42", rr.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"deny when unconfigured", nil, "https://rentals.example.com", ""},
		{"wildcard", []string{"*"}, "https://rentals.example.com", "https://rentals.example.com"},
		{"listed origin", []string{"https://rentals.example.com"}, "https://rentals.example.com", "https://rentals.example.com"},
		{"unlisted origin", []string{"https://rentals.example.com"}, "https://evil.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/poll", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			corsMiddleware(okHandler, tt.allowed).ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/poll/abc", nil)
	req.Header.Set("Origin", "https://rentals.example.com")
	rr := httptest.NewRecorder()
	corsMiddleware(okHandler, []string{"*"}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestWithMiddleware(t *testing.T) {
	handler := withMiddleware(okHandler, logging.New(nil, "silent"), []string{"https://rentals.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://rentals.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "https://rentals.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
