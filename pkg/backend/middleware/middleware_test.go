package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/imagegen-kit/pkg/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// TestRequestIDGenerated verifies an ID is minted, stored in the context,
// and echoed back in the response header.
func TestRequestIDGenerated(t *testing.T) {
	var fromCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, fromCtx)
	assert.Equal(t, fromCtx, rec.Header().Get(RequestIDHeader))
}

// TestRequestIDClientSupplied verifies a client-supplied ID is preserved.
func TestRequestIDClientSupplied(t *testing.T) {
	h := RequestID(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-id-7")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-id-7", rec.Header().Get(RequestIDHeader))
}

// TestGetRequestIDWithoutMiddleware verifies the lookup is safe when the
// middleware did not run.
func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, GetRequestID(req.Context()))
}

// TestRateLimitRejectsOverLimit verifies the 429 response carries the
// Retry-After and rate limit headers.
func TestRateLimitRejectsOverLimit(t *testing.T) {
	limiter := ratelimit.New(2, time.Minute, zerolog.New(io.Discard))
	h := RateLimit(limiter, "")(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.Contains(t, body.Error.Message, "rate limit exceeded for")
}

// TestRateLimitKeysByHeader verifies clients with distinct identity headers
// get independent budgets.
func TestRateLimitKeysByHeader(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute, zerolog.New(io.Discard))
	h := RateLimit(limiter, "X-API-Client")(okHandler())

	for _, client := range []string{"alpha", "beta"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-API-Client", client)
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, client)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Client", "alpha")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

// TestAuthRejectsBadToken verifies a wrong bearer token gets a 401 with the
// JSON error envelope.
func TestAuthRejectsBadToken(t *testing.T) {
	h := Auth(AuthConfig{Enabled: true, APIPassword: "sekrit"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/generate", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}

// TestAuthAcceptsValidToken verifies the happy path.
func TestAuthAcceptsValidToken(t *testing.T) {
	h := Auth(AuthConfig{Enabled: true, APIPassword: "sekrit"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/generate", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestAuthPublicPaths verifies public prefixes skip the token check.
func TestAuthPublicPaths(t *testing.T) {
	h := Auth(AuthConfig{Enabled: true, APIPassword: "sekrit", PublicPaths: []string{"/health"}})(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestAuthFromEnv verifies the expected token can come from an environment
// variable.
func TestAuthFromEnv(t *testing.T) {
	t.Setenv("TEST_BACKEND_API_KEY", "env-token")
	h := Auth(AuthConfig{Enabled: true, APIKeyEnv: "TEST_BACKEND_API_KEY"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/generate", nil)
	req.Header.Set("Authorization", "Bearer env-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestAuthDisabledPassesThrough verifies disabled auth never blocks.
func TestAuthDisabledPassesThrough(t *testing.T) {
	h := Auth(AuthConfig{Enabled: false})(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/generate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestCORSAllowedOrigin verifies allowed origins get the allow-origin header
// and responses vary on Origin.
func TestCORSAllowedOrigin(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

// TestCORSDisallowedOrigin verifies unknown origins get no allow-origin
// header but the request still proceeds.
func TestCORSDisallowedOrigin(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestCORSPreflight verifies OPTIONS requests are answered with 204 and the
// configured methods.
func TestCORSPreflight(t *testing.T) {
	h := CORS(CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "https://anywhere.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

// TestRecoveryConvertsPanicTo500 verifies a panicking handler yields a JSON
// 500 instead of a dropped connection.
func TestRecoveryConvertsPanicTo500(t *testing.T) {
	h := Recovery(zerolog.New(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

// TestLoggingPassesThrough verifies the logging wrapper preserves status and
// body.
func TestLoggingPassesThrough(t *testing.T) {
	h := Logging(zerolog.New(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
