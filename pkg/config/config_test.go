package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvHuggingFaceToken, EnvReplicateToken, EnvDefaultBackend,
		EnvLogLevel, EnvMaxRetries, EnvTimeout,
	} {
		t.Setenv(key, "")
	}
}

// TestDefaults verifies the bare deployment defaults.
func TestDefaults(t *testing.T) {
	s := Defaults()

	assert.Equal(t, 8080, s.Server.Port)
	assert.Equal(t, "huggingface", s.DefaultBackend)
	assert.Equal(t, []string{"replicate", "local"}, s.FallbackBackends)
	assert.True(t, s.EnableFallback)
	assert.Equal(t, 3, s.MaxRetries)
	assert.Equal(t, 60*time.Second, s.Timeout)
	assert.True(t, s.RateLimit.Enabled)
	assert.Equal(t, 100, s.RateLimit.Limit)
	assert.Equal(t, "info", s.Logging.Level)
}

// TestLoadLayersFileOverDefaults verifies YAML values replace defaults
// while unset fields keep them.
func TestLoadLayersFileOverDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
default_backend: replicate
max_retries: 1
backends:
  replicate:
    api_key: r8_from_file
    model: black-forest-labs/flux-dev
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, s.Server.Port)
	assert.Equal(t, "0.0.0.0", s.Server.Host, "unset fields keep defaults")
	assert.Equal(t, "replicate", s.DefaultBackend)
	assert.Equal(t, 1, s.MaxRetries)
	assert.Equal(t, "r8_from_file", s.Backends["replicate"].APIKey)
	assert.Equal(t, "black-forest-labs/flux-dev", s.Backends["replicate"].Model)
}

// TestLoadMissingFile verifies a bad path is an error while an empty path
// skips the file.
func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "huggingface", s.DefaultBackend)
}

// TestLoadInvalidYAML verifies parse failures surface.
func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "server: [not a mapping"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

// TestEnvOverridesFile verifies environment values win over file values.
func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvHuggingFaceToken, "hf_from_env")
	t.Setenv(EnvDefaultBackend, "local")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvMaxRetries, "5")
	t.Setenv(EnvTimeout, "90")

	path := writeConfig(t, `
default_backend: replicate
backends:
  huggingface:
    api_key: hf_from_file
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hf_from_env", s.Backends["huggingface"].APIKey)
	assert.Equal(t, "local", s.DefaultBackend)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, 90*time.Second, s.Timeout)
}

// TestEnvIgnoresInvalidNumbers verifies unparsable numeric overrides are
// dropped rather than zeroing the setting.
func TestEnvIgnoresInvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMaxRetries, "many")
	t.Setenv(EnvTimeout, "-1")

	s := Defaults()
	s.FromEnv()
	assert.Equal(t, 3, s.MaxRetries)
	assert.Equal(t, 60*time.Second, s.Timeout)
}

// TestValidateRequiredKeys verifies credential checks track the default
// backend.
func TestValidateRequiredKeys(t *testing.T) {
	s := Defaults()
	err := s.ValidateRequiredKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HUGGINGFACE_TOKEN")

	s.Backends["huggingface"] = types.BackendConfig{APIKey: "hf_x"}
	assert.NoError(t, s.ValidateRequiredKeys())

	s.DefaultBackend = "replicate"
	err = s.ValidateRequiredKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REPLICATE_TOKEN")

	s.DefaultBackend = "local"
	assert.NoError(t, s.ValidateRequiredKeys())
}

// TestChain verifies dispatch ordering and deduplication.
func TestChain(t *testing.T) {
	s := Defaults()
	assert.Equal(t, []string{"huggingface", "replicate", "local"}, s.Chain())

	s.DefaultBackend = "replicate"
	s.FallbackBackends = []string{"replicate", "", "local"}
	assert.Equal(t, []string{"replicate", "local"}, s.Chain())
}
