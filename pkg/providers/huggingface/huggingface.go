// Package huggingface implements the backend capability contract against
// the HuggingFace Inference API.
package huggingface

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
	Name = "huggingface"

	// DefaultModel is used when no model is configured.
	DefaultModel = "black-forest-labs/FLUX.1-schnell"

	defaultBaseURL = "https://api-inference.huggingface.co"

	// maxImageBytes bounds how much response body is read for one image.
	maxImageBytes = 32 << 20
)

var supportedModels = []string{
	"black-forest-labs/FLUX.1-schnell",
	"black-forest-labs/FLUX.1-dev",
	"stabilityai/stable-diffusion-xl-base-1.0",
	"stabilityai/stable-diffusion-2-1",
	"runwayml/stable-diffusion-v1-5",
}

// Backend generates images through the HuggingFace serverless Inference
// API using a static bearer token.
type Backend struct {
	apiKey  string
	model   string
	baseURL string
	client  *ihttp.Client
	limiter *rate.Limiter
}

// New creates a HuggingFace backend. The API key is required.
func New(cfg types.BackendConfig) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface API key is required")
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
			Timeout: 120 * time.Second,
		}),
		// The serverless API tolerates roughly one generation per second
		// per token before throttling.
		limiter: rate.NewLimiter(rate.Limit(1), 2),
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

// inferencePayload is the request body for the text-to-image task.
type inferencePayload struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type inferenceParameters struct {
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
	Width             int     `json:"width,omitempty"`
	Height            int     `json:"height,omitempty"`
	Seed              *int64  `json:"seed,omitempty"`
	Strength          float64 `json:"strength,omitempty"`
}

// Generate implements types.Backend.
func (b *Backend) Generate(ctx context.Context, req types.GenerationRequest) (*types.GeneratedImage, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := inferencePayload{
		Inputs: req.Prompt,
		Parameters: inferenceParameters{
			NegativePrompt:    req.NegativePrompt,
			GuidanceScale:     req.GuidanceScale,
			NumInferenceSteps: req.InferenceSteps,
			Seed:              req.Seed,
		},
	}
	if req.IsImageToImage() {
		payload.Parameters.Strength = req.Strength
	} else {
		payload.Parameters.Width = req.Width
		payload.Parameters.Height = req.Height
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewInvalidResponseError(Name, fmt.Sprintf("encode request: %v", err))
	}

	resp, err := b.client.Do(ctx, nethttp.MethodPost, b.modelURL(), body, map[string]string{
		"Authorization": "Bearer " + b.apiKey,
		"Content-Type":  "application/json",
		"x-request-id":  uuid.New().String(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.NewNetworkError(Name, err.Error()).WithOriginalErr(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, b.classify(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, types.NewNetworkError(Name, fmt.Sprintf("read image: %v", err)).WithOriginalErr(err)
	}
	if len(data) == 0 {
		return nil, types.NewInvalidResponseError(Name, "empty image response")
	}

	metadata := map[string]any{
		"model":           b.model,
		"guidance_scale":  req.GuidanceScale,
		"inference_steps": req.InferenceSteps,
	}
	if req.NegativePrompt != "" {
		metadata["negative_prompt"] = req.NegativePrompt
	}
	if req.Seed != nil {
		metadata["seed"] = *req.Seed
	}
	if req.IsImageToImage() {
		metadata["generation_type"] = "image-to-image"
		metadata["strength"] = req.Strength
	} else {
		metadata["generation_type"] = "text-to-image"
		metadata["width"] = req.Width
		metadata["height"] = req.Height
	}

	return types.NewGeneratedImage(Name, req, data, metadata), nil
}

// classify maps a non-200 inference response to a ProviderError. The API
// reports errors as {"error": "..."} JSON.
func (b *Backend) classify(resp *nethttp.Response) *types.ProviderError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(raw))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		message = apiErr.Error
	}
	if message == "" {
		message = nethttp.StatusText(resp.StatusCode)
	}

	kind := types.ClassifyHTTPError(resp.StatusCode)
	return types.NewProviderError(Name, kind, message).WithStatusCode(resp.StatusCode)
}

// HealthCheck implements types.Backend. It asks the API for the model's
// status without running a generation.
func (b *Backend) HealthCheck(ctx context.Context) bool {
	resp, err := b.client.Do(ctx, nethttp.MethodGet, b.modelURL(), nil, map[string]string{
		"Authorization": "Bearer " + b.apiKey,
	})
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == nethttp.StatusOK
}

func (b *Backend) modelURL() string {
	return b.baseURL + "/models/" + b.model
}
