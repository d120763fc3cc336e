package backendtypes

// GenerateRequest represents an image generation request
type GenerateRequest struct {
	Backend        string   `json:"backend,omitempty"`
	Model          string   `json:"model,omitempty"`
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	GuidanceScale  *float64 `json:"guidance_scale,omitempty"`
	InferenceSteps *int     `json:"num_inference_steps,omitempty"`
	Width          *int     `json:"width,omitempty"`
	Height         *int     `json:"height,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	InitImage      string   `json:"init_image,omitempty"` // base64-encoded
	Strength       *float64 `json:"strength,omitempty"`
}
