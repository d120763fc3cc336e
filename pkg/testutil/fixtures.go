package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// TestFixtures provides common test data for use across tests.
type TestFixtures struct {
	// Backend configurations
	HuggingFaceConfig types.BackendConfig
	ReplicateConfig   types.BackendConfig
	LocalConfig       types.BackendConfig

	// Requests
	BasicRequest   types.GenerationRequest
	Img2ImgRequest types.GenerationRequest
}

// NewTestFixtures creates a TestFixtures instance with all standard test data.
func NewTestFixtures() *TestFixtures {
	f := &TestFixtures{
		HuggingFaceConfig: types.BackendConfig{
			APIKey: "hf_test_token",
			Model:  "black-forest-labs/FLUX.1-schnell",
		},
		ReplicateConfig: types.BackendConfig{
			APIKey: "r8_test_token",
			Model:  "black-forest-labs/flux-schnell",
		},
		LocalConfig: types.BackendConfig{},
	}

	f.BasicRequest = types.GenerationRequest{Prompt: "a red fox in the snow"}.WithDefaults()

	f.Img2ImgRequest = types.GenerationRequest{
		Prompt:    "a red fox in the snow, oil painting",
		InitImage: TinyPNG(),
	}.WithDefaults()

	return f
}

// TinyPNG returns a valid 2x2 PNG, small enough to inline in requests.
func TinyPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
