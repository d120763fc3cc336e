package types

import (
	"context"
)

// Backend is the capability contract every image generation provider
// implements, built-in or plugin-supplied. There is no default behavior; a
// provider must implement all four methods.
type Backend interface {
	// Name returns the stable display identifier of the backend.
	Name() string

	// SupportedModels returns the models/capabilities the backend
	// advertises. Used for UI population and diagnostics; the kit does not
	// enforce it.
	SupportedModels() []string

	// Generate produces an image for the request. It returns a
	// *ProviderError on any failure (network, quota, invalid response,
	// timeout). The call is synchronous in contract; the dispatcher bounds
	// it with the context deadline.
	Generate(ctx context.Context, req GenerationRequest) (*GeneratedImage, error)

	// HealthCheck is a cheap liveness probe. Implementations must respect
	// the context deadline and must not perform a full generation.
	HealthCheck(ctx context.Context) bool
}

// BackendHealth is the result of probing a single backend.
type BackendHealth struct {
	Backend string `json:"backend"`
	Healthy bool   `json:"healthy"`
}
