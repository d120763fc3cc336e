package types

// BackendConfig carries the construction arguments for a backend instance.
// It is deliberately comparable so the factory can key an instance cache by
// the exact argument tuple.
type BackendConfig struct {
	// APIKey authenticates against a remote generation service. Required
	// when the owning plugin's metadata declares requires_credential.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Model selects the model the backend should use. Empty selects the
	// backend's default.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// BaseURL overrides the service endpoint, mainly for tests.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// CacheDir is where a local backend keeps downloaded model weights.
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`
}

// BackendFactoryFunc constructs a live backend from configuration. Every
// plugin exposes one; the factory invokes it per request unless caching is
// enabled.
type BackendFactoryFunc func(config BackendConfig) (Backend, error)
