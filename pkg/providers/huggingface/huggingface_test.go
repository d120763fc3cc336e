package huggingface

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

func newTestBackend(t *testing.T, baseURL string) *Backend {
	t.Helper()
	b, err := New(types.BackendConfig{APIKey: "hf_test", BaseURL: baseURL})
	require.NoError(t, err)
	return b
}

// TestNewRequiresAPIKey verifies construction fails without a token.
func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(types.BackendConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

// TestGenerateReturnsImageBytes verifies a successful inference call returns
// the raw image with generation metadata attached.
func TestGenerateReturnsImageBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/"+DefaultModel, r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("x-request-id"))

		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"inputs":"a red fox"`)
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	req := types.GenerationRequest{Prompt: "a red fox"}.WithDefaults()

	img, err := b.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), img.ImageData)
	assert.Equal(t, Name, img.Backend)
	assert.Equal(t, "text-to-image", img.Metadata["generation_type"])
	assert.Equal(t, DefaultModel, img.Metadata["model"])
}

// TestGenerateClassifiesAuthFailure verifies a 401 with the API's JSON error
// envelope becomes a non-retryable authentication error.
func TestGenerateClassifiesAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	_, err := b.Generate(context.Background(), types.GenerationRequest{Prompt: "x"}.WithDefaults())
	require.Error(t, err)

	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrKindAuthentication, perr.Kind)
	assert.False(t, perr.Retryable)
	assert.Contains(t, perr.Message, "invalid token")
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
}

// TestGenerateRejectsEmptyResponse verifies a 200 with no body is treated as
// an invalid response rather than a zero-byte image.
func TestGenerateRejectsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	_, err := b.Generate(context.Background(), types.GenerationRequest{Prompt: "x"}.WithDefaults())

	var perr *types.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrKindInvalidResponse, perr.Kind)
}

// TestHealthCheck verifies the model status probe maps 200 to healthy and
// anything else to unhealthy.
func TestHealthCheck(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	b := newTestBackend(t, srv.URL)
	assert.True(t, b.HealthCheck(context.Background()))

	status = http.StatusNotFound
	assert.False(t, b.HealthCheck(context.Background()))
}

// TestSupportedModelsIsACopy verifies callers cannot mutate the backend's
// model list.
func TestSupportedModelsIsACopy(t *testing.T) {
	b := newTestBackend(t, "http://unused")
	models := b.SupportedModels()
	require.NotEmpty(t, models)
	models[0] = "mutated"
	assert.NotEqual(t, "mutated", b.SupportedModels()[0])
}
