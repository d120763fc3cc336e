package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Bounds and defaults for generation parameters. The bounds mirror what the
// hosted diffusion APIs accept; requests outside them fail validation before
// ever reaching a backend.
const (
	MaxPromptLength = 1000

	MinGuidanceScale     = 1.0
	MaxGuidanceScale     = 20.0
	DefaultGuidanceScale = 7.5

	MinInferenceSteps     = 1
	MaxInferenceSteps     = 150
	DefaultInferenceSteps = 4

	MinDimension     = 256
	MaxDimension     = 1024
	DefaultDimension = 512

	MinStrength     = 0.0
	MaxStrength     = 1.0
	DefaultStrength = 0.8
)

// GenerationRequest describes a single image generation. A request is
// immutable once it passes Validate: the dispatcher and backends receive it
// by value and never write to it.
type GenerationRequest struct {
	// Prompt is the text describing the desired image.
	Prompt string `json:"prompt"`

	// NegativePrompt describes what to avoid in the image.
	NegativePrompt string `json:"negative_prompt,omitempty"`

	// GuidanceScale controls how closely the model follows the prompt.
	GuidanceScale float64 `json:"guidance_scale"`

	// InferenceSteps is the number of denoising steps.
	InferenceSteps int `json:"inference_steps"`

	// Width and Height are the output dimensions in pixels. Ignored when
	// InitImage is set.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Seed fixes the random seed for reproducibility. Nil means random.
	Seed *int64 `json:"seed,omitempty"`

	// InitImage enables image-to-image generation when non-empty.
	InitImage []byte `json:"init_image,omitempty"`

	// Strength controls how much of InitImage is preserved (image-to-image
	// only).
	Strength float64 `json:"strength,omitempty"`
}

// NewGenerationRequest builds a request with defaults applied and validates
// it. Invalid parameters fail here and never reach a backend.
func NewGenerationRequest(prompt string) (GenerationRequest, error) {
	req := GenerationRequest{Prompt: prompt}.WithDefaults()
	if err := req.Validate(); err != nil {
		return GenerationRequest{}, err
	}
	return req, nil
}

// WithDefaults returns a copy of the request with zero-valued generation
// parameters replaced by their defaults. The prompt fields are left as-is.
func (r GenerationRequest) WithDefaults() GenerationRequest {
	if r.GuidanceScale == 0 {
		r.GuidanceScale = DefaultGuidanceScale
	}
	if r.InferenceSteps == 0 {
		r.InferenceSteps = DefaultInferenceSteps
	}
	if r.Width == 0 {
		r.Width = DefaultDimension
	}
	if r.Height == 0 {
		r.Height = DefaultDimension
	}
	if len(r.InitImage) > 0 && r.Strength == 0 {
		r.Strength = DefaultStrength
	}
	return r
}

// Validate checks all parameter bounds and returns a *ValidationError on the
// first violation.
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return NewValidationError("prompt", "must not be empty")
	}
	if len(r.Prompt) > MaxPromptLength {
		return NewValidationError("prompt", fmt.Sprintf("must be at most %d characters", MaxPromptLength))
	}
	if len(r.NegativePrompt) > MaxPromptLength {
		return NewValidationError("negative_prompt", fmt.Sprintf("must be at most %d characters", MaxPromptLength))
	}
	if r.GuidanceScale < MinGuidanceScale || r.GuidanceScale > MaxGuidanceScale {
		return NewValidationError("guidance_scale",
			fmt.Sprintf("must be between %.1f and %.1f, got %g", MinGuidanceScale, MaxGuidanceScale, r.GuidanceScale))
	}
	if r.InferenceSteps < MinInferenceSteps || r.InferenceSteps > MaxInferenceSteps {
		return NewValidationError("inference_steps",
			fmt.Sprintf("must be between %d and %d, got %d", MinInferenceSteps, MaxInferenceSteps, r.InferenceSteps))
	}
	if r.Width < MinDimension || r.Width > MaxDimension {
		return NewValidationError("width",
			fmt.Sprintf("must be between %d and %d, got %d", MinDimension, MaxDimension, r.Width))
	}
	if r.Height < MinDimension || r.Height > MaxDimension {
		return NewValidationError("height",
			fmt.Sprintf("must be between %d and %d, got %d", MinDimension, MaxDimension, r.Height))
	}
	if len(r.InitImage) > 0 {
		if r.Strength < MinStrength || r.Strength > MaxStrength {
			return NewValidationError("strength",
				fmt.Sprintf("must be between %.1f and %.1f, got %g", MinStrength, MaxStrength, r.Strength))
		}
	}
	return nil
}

// IsImageToImage reports whether the request carries an init image.
func (r GenerationRequest) IsImageToImage() bool {
	return len(r.InitImage) > 0
}

// GeneratedImage is the result of a successful backend generate call.
// Ownership of the image bytes passes to the caller; nothing in the kit
// retains or mutates a result after returning it.
type GeneratedImage struct {
	// ID uniquely identifies this generation.
	ID string `json:"id"`

	// ImageData holds the raw encoded image bytes (typically PNG).
	ImageData []byte `json:"image_data"`

	// Prompt echoes the prompt the image was generated from.
	Prompt string `json:"prompt"`

	// Backend is the name of the backend that produced the image.
	Backend string `json:"backend"`

	// Timestamp is when the image was generated.
	Timestamp time.Time `json:"timestamp"`

	// Metadata carries provenance: model id, parameters actually used.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewGeneratedImage assembles a result for a backend. It stamps a fresh ID
// and the current time.
func NewGeneratedImage(backend string, req GenerationRequest, data []byte, metadata map[string]any) *GeneratedImage {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &GeneratedImage{
		ID:        uuid.New().String(),
		ImageData: data,
		Prompt:    req.Prompt,
		Backend:   backend,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
