// Package replicate implements the backend capability contract against the
// Replicate predictions API: create a prediction, poll until it settles,
// then fetch the output image.
package replicate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	ihttp "github.com/cecil-the-coder/imagegen-kit/internal/http"
	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

const (
	// Name is the backend's stable identifier.
	Name = "replicate"

	// DefaultModel is used when no model is configured.
	DefaultModel = "black-forest-labs/flux-schnell"

	defaultBaseURL = "https://api.replicate.com"

	maxImageBytes = 32 << 20
)

var supportedModels = []string{
	"black-forest-labs/flux-schnell",
	"black-forest-labs/flux-dev",
	"stability-ai/sdxl",
}

// Backend generates images through the Replicate API.
type Backend struct {
	apiKey       string
	model        string
	baseURL      string
	client       *ihttp.Client
	limiter      *rate.Limiter
	pollInterval time.Duration
}

// New creates a Replicate backend. The API key is required.
func New(cfg types.BackendConfig) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("replicate API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Backend{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: ihttp.NewClient(ihttp.Config{
			Timeout: 30 * time.Second,
			// Polling does its own pacing; a failed poll should not burn
			// client-level retries.
			MaxRetries: 1,
		}),
		limiter:      rate.NewLimiter(rate.Limit(2), 4),
		pollInterval: time.Second,
	}, nil
}

// Name implements types.Backend.
func (b *Backend) Name() string { return Name }

// SupportedModels implements types.Backend.
func (b *Backend) SupportedModels() []string {
	out := make([]string, len(supportedModels))
	copy(out, supportedModels)
	return out
}

type predictionInput struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
	Width             int     `json:"width,omitempty"`
	Height            int     `json:"height,omitempty"`
	Seed              *int64  `json:"seed,omitempty"`
}

type prediction struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output"`
	Error  string   `json:"error"`
}

// Generate implements types.Backend.
func (b *Backend) Generate(ctx context.Context, req types.GenerationRequest) (*types.GeneratedImage, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pred, err := b.createPrediction(ctx, req)
	if err != nil {
		return nil, err
	}

	pred, err = b.waitForPrediction(ctx, pred)
	if err != nil {
		return nil, err
	}

	if len(pred.Output) == 0 {
		return nil, types.NewInvalidResponseError(Name, "prediction succeeded but produced no output")
	}

	data, err := b.fetchOutput(ctx, pred.Output[0])
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"model":           b.model,
		"prediction_id":   pred.ID,
		"guidance_scale":  req.GuidanceScale,
		"inference_steps": req.InferenceSteps,
		"width":           req.Width,
		"height":          req.Height,
	}
	if req.Seed != nil {
		metadata["seed"] = *req.Seed
	}

	return types.NewGeneratedImage(Name, req, data, metadata), nil
}

func (b *Backend) createPrediction(ctx context.Context, req types.GenerationRequest) (*prediction, error) {
	body, err := json.Marshal(map[string]any{
		"input": predictionInput{
			Prompt:            req.Prompt,
			NegativePrompt:    req.NegativePrompt,
			GuidanceScale:     req.GuidanceScale,
			NumInferenceSteps: req.InferenceSteps,
			Width:             req.Width,
			Height:            req.Height,
			Seed:              req.Seed,
		},
	})
	if err != nil {
		return nil, types.NewInvalidResponseError(Name, fmt.Sprintf("encode request: %v", err))
	}

	url := fmt.Sprintf("%s/v1/models/%s/predictions", b.baseURL, b.model)
	resp, err := b.client.Do(ctx, nethttp.MethodPost, url, body, b.headers())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.NewNetworkError(Name, err.Error()).WithOriginalErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != nethttp.StatusCreated && resp.StatusCode != nethttp.StatusOK {
		return nil, b.classify(resp)
	}
	return decodePrediction(resp.Body)
}

// waitForPrediction polls the prediction until it settles or the context
// expires.
func (b *Backend) waitForPrediction(ctx context.Context, pred *prediction) (*prediction, error) {
	for {
		switch pred.Status {
		case "succeeded":
			return pred, nil
		case "failed", "canceled":
			msg := pred.Error
			if msg == "" {
				msg = "prediction " + pred.Status
			}
			return nil, types.NewProviderError(Name, types.ErrKindInvalidResponse, msg)
		}

		timer := time.NewTimer(b.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		url := fmt.Sprintf("%s/v1/predictions/%s", b.baseURL, pred.ID)
		resp, err := b.client.Do(ctx, nethttp.MethodGet, url, nil, b.headers())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, types.NewNetworkError(Name, err.Error()).WithOriginalErr(err)
		}
		if resp.StatusCode != nethttp.StatusOK {
			perr := b.classify(resp)
			_ = resp.Body.Close()
			return nil, perr
		}
		next, err := decodePrediction(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}
		pred = next
	}
}

func (b *Backend) fetchOutput(ctx context.Context, url string) ([]byte, error) {
	resp, err := b.client.Do(ctx, nethttp.MethodGet, url, nil, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.NewNetworkError(Name, err.Error()).WithOriginalErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, types.NewInvalidResponseError(Name,
			fmt.Sprintf("fetch output: status %d", resp.StatusCode)).WithStatusCode(resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, types.NewNetworkError(Name, fmt.Sprintf("read output: %v", err)).WithOriginalErr(err)
	}
	return data, nil
}

func (b *Backend) classify(resp *nethttp.Response) *types.ProviderError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(raw))
	var apiErr struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Detail != "" {
		message = apiErr.Detail
	}
	if message == "" {
		message = nethttp.StatusText(resp.StatusCode)
	}
	kind := types.ClassifyHTTPError(resp.StatusCode)
	return types.NewProviderError(Name, kind, message).WithStatusCode(resp.StatusCode)
}

func decodePrediction(r io.Reader) (*prediction, error) {
	var pred prediction
	if err := json.NewDecoder(r).Decode(&pred); err != nil {
		return nil, types.NewInvalidResponseError(Name, fmt.Sprintf("decode prediction: %v", err))
	}
	return &pred, nil
}

// HealthCheck implements types.Backend. It verifies the token against the
// account endpoint.
func (b *Backend) HealthCheck(ctx context.Context) bool {
	resp, err := b.client.Do(ctx, nethttp.MethodGet, b.baseURL+"/v1/account", nil, b.headers())
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == nethttp.StatusOK
}

func (b *Backend) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + b.apiKey,
		"Content-Type":  "application/json",
		"x-request-id":  uuid.New().String(),
	}
}
