// Package config loads application settings from an optional YAML file with
// environment variable overrides. API keys are only ever read from the
// environment or the file, never hardcoded.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cecil-the-coder/imagegen-kit/pkg/backendtypes"
	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// Environment variables recognized by FromEnv. File values lose to
// environment values so deployments can override a checked-in config.
const (
	EnvHuggingFaceToken = "HUGGINGFACE_TOKEN"
	EnvReplicateToken   = "REPLICATE_TOKEN"
	EnvDefaultBackend   = "DEFAULT_BACKEND"
	EnvLogLevel         = "LOG_LEVEL"
	EnvMaxRetries       = "MAX_RETRIES"
	EnvTimeout          = "TIMEOUT"
)

// Settings is the complete application configuration.
type Settings struct {
	Server    backendtypes.ServerConfig    `yaml:"server"`
	Auth      backendtypes.AuthConfig      `yaml:"auth"`
	Logging   backendtypes.LoggingConfig   `yaml:"logging"`
	CORS      backendtypes.CORSConfig      `yaml:"cors"`
	RateLimit backendtypes.RateLimitConfig `yaml:"rate_limit"`

	// DefaultBackend is the primary generation backend; FallbackBackends
	// are tried in order when it fails.
	DefaultBackend   string   `yaml:"default_backend"`
	FallbackBackends []string `yaml:"fallback_backends"`
	EnableFallback   bool     `yaml:"enable_fallback"`

	// MaxRetries and Timeout bound each backend attempt.
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`

	// PluginsDir is scanned for backend plugin descriptors at startup.
	PluginsDir string `yaml:"plugins_dir"`

	// Backends holds per-backend construction arguments keyed by name.
	Backends map[string]types.BackendConfig `yaml:"backends"`
}

// Defaults returns settings matching a bare deployment: HuggingFace primary,
// local renderer as last resort, rate limiting on.
func Defaults() Settings {
	return Settings{
		Server: backendtypes.ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Version:         "dev",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: backendtypes.LoggingConfig{Level: "info", Format: "json"},
		RateLimit: backendtypes.RateLimitConfig{
			Enabled: true,
			Limit:   100,
			Window:  60 * time.Second,
		},
		DefaultBackend:   "huggingface",
		FallbackBackends: []string{"replicate", "local"},
		EnableFallback:   true,
		MaxRetries:       3,
		Timeout:          60 * time.Second,
		PluginsDir:       "plugins",
		Backends:         map[string]types.BackendConfig{},
	}
}

// Load reads settings from a YAML file layered over Defaults, then applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	s.FromEnv()
	return s, nil
}

// FromEnv applies environment variable overrides in place.
func (s *Settings) FromEnv() {
	if s.Backends == nil {
		s.Backends = map[string]types.BackendConfig{}
	}
	if v := os.Getenv(EnvHuggingFaceToken); v != "" {
		cfg := s.Backends["huggingface"]
		cfg.APIKey = v
		s.Backends["huggingface"] = cfg
	}
	if v := os.Getenv(EnvReplicateToken); v != "" {
		cfg := s.Backends["replicate"]
		cfg.APIKey = v
		s.Backends["replicate"] = cfg
	}
	if v := os.Getenv(EnvDefaultBackend); v != "" {
		s.DefaultBackend = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		s.Logging.Level = v
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			s.MaxRetries = n
		}
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.Timeout = time.Duration(n) * time.Second
		}
	}
}

// ValidateRequiredKeys checks that the default backend has the credential it
// needs. The local backend needs none.
func (s *Settings) ValidateRequiredKeys() error {
	switch s.DefaultBackend {
	case "huggingface":
		if s.Backends["huggingface"].APIKey == "" {
			return types.NewConfigurationError("huggingface",
				"HUGGINGFACE_TOKEN is required when using the HuggingFace backend; "+
					"get a token from https://huggingface.co/settings/tokens")
		}
	case "replicate":
		if s.Backends["replicate"].APIKey == "" {
			return types.NewConfigurationError("replicate",
				"REPLICATE_TOKEN is required when using the Replicate backend")
		}
	}
	return nil
}

// Chain returns the backend names in dispatch order: default first, then
// fallbacks, with duplicates removed.
func (s *Settings) Chain() []string {
	seen := map[string]bool{}
	var chain []string
	for _, name := range append([]string{s.DefaultBackend}, s.FallbackBackends...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		chain = append(chain, name)
	}
	return chain
}
