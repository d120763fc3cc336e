package providers

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/imagegen-kit/pkg/plugin"
)

// TestRegisterBuiltins verifies all three backends register as initialized
// plugins with the expected credential requirements.
func TestRegisterBuiltins(t *testing.T) {
	reg := plugin.NewRegistry(zerolog.New(io.Discard))
	require.NoError(t, RegisterBuiltins(reg))

	assert.Equal(t, []string{"huggingface", "local", "replicate"}, reg.Available())

	for name, wantCredential := range map[string]bool{
		"huggingface": true,
		"replicate":   true,
		"local":       false,
	} {
		rec, ok := reg.Record(name)
		require.True(t, ok, name)
		assert.Equal(t, plugin.StateInitialized, rec.State, name)
		assert.True(t, rec.Builtin, name)
		assert.Equal(t, wantCredential, rec.Meta.RequiresCredential, name)
	}
}
