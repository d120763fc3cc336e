package backendtypes

import (
	"time"

	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// BackendConfig defines the configuration for the backend server
type BackendConfig struct {
	Server    ServerConfig                   `yaml:"server"`
	Auth      AuthConfig                     `yaml:"auth"`
	Logging   LoggingConfig                  `yaml:"logging"`
	CORS      CORSConfig                     `yaml:"cors"`
	RateLimit RateLimitConfig                `yaml:"rate_limit"`
	Backends  map[string]types.BackendConfig `yaml:"backends"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Version         string        `yaml:"version"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AuthConfig struct {
	Enabled     bool     `yaml:"enabled"`
	APIPassword string   `yaml:"api_password"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	PublicPaths []string `yaml:"public_paths"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// RateLimitConfig caps requests per client key over a trailing window.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Limit    int           `yaml:"limit"`
	Window   time.Duration `yaml:"window"`
	ByHeader string        `yaml:"by_header"` // client key header, falls back to remote address
}
