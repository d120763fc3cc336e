// Package local implements an offline backend that renders deterministic
// placeholder images. It needs no credential or network access and is the
// fallback of last resort when every remote backend is down. Given the same
// request and seed it always produces identical bytes.
package local

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"math/rand"

	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

const (
	// Name is the backend's stable identifier.
	Name = "local"

	// DefaultModel is the built-in renderer.
	DefaultModel = "procedural-v1"
)

var supportedModels = []string{DefaultModel}

// Backend renders images locally.
type Backend struct {
	model string
}

// New creates a local backend. It never requires a credential.
func New(cfg types.BackendConfig) (*Backend, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if model != DefaultModel {
		return nil, fmt.Errorf("unsupported local model %q", model)
	}
	return &Backend{model: model}, nil
}

// Name implements types.Backend.
func (b *Backend) Name() string { return Name }

// SupportedModels implements types.Backend.
func (b *Backend) SupportedModels() []string {
	out := make([]string, len(supportedModels))
	copy(out, supportedModels)
	return out
}

// Generate implements types.Backend. Rendering is cheap but still honors
// cancellation between row passes so a cancelled request stops promptly.
func (b *Backend) Generate(ctx context.Context, req types.GenerationRequest) (*types.GeneratedImage, error) {
	seed := deriveSeed(req)
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: reproducible rendering, not crypto

	width, height := req.Width, req.Height
	var base image.Image
	if req.IsImageToImage() {
		decoded, _, err := image.Decode(bytes.NewReader(req.InitImage))
		if err != nil {
			return nil, types.NewInvalidResponseError(Name, fmt.Sprintf("undecodable init image: %v", err))
		}
		base = decoded
		bounds := decoded.Bounds()
		width, height = bounds.Dx(), bounds.Dy()
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	palette := derivePalette(rng)

	for y := 0; y < height; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < width; x++ {
			c := blendGradient(palette, x, y, width, height, rng)
			if base != nil {
				c = mix(colorAt(base, x, y), c, req.Strength)
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, types.NewProviderError(Name, types.ErrKindUnknown, fmt.Sprintf("encode png: %v", err))
	}

	metadata := map[string]any{
		"model":           b.model,
		"seed":            seed,
		"guidance_scale":  req.GuidanceScale,
		"inference_steps": req.InferenceSteps,
		"width":           width,
		"height":          height,
	}
	if req.IsImageToImage() {
		metadata["generation_type"] = "image-to-image"
		metadata["strength"] = req.Strength
	} else {
		metadata["generation_type"] = "text-to-image"
	}

	return types.NewGeneratedImage(Name, req, buf.Bytes(), metadata), nil
}

// HealthCheck implements types.Backend. The local renderer is always live.
func (b *Backend) HealthCheck(_ context.Context) bool { return true }

// deriveSeed folds the request's prompt into the seed so different prompts
// render differently even without an explicit seed, while an explicit seed
// keeps generation reproducible.
func deriveSeed(req types.GenerationRequest) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(req.Prompt))
	_, _ = h.Write([]byte(req.NegativePrompt))
	if req.Seed != nil {
		return *req.Seed ^ int64(h.Sum64())
	}
	return int64(h.Sum64())
}

type gradientPalette struct {
	from, to color.RGBA
}

func derivePalette(rng *rand.Rand) gradientPalette {
	pick := func() color.RGBA {
		return color.RGBA{
			R: uint8(rng.Intn(256)),
			G: uint8(rng.Intn(256)),
			B: uint8(rng.Intn(256)),
			A: 255,
		}
	}
	return gradientPalette{from: pick(), to: pick()}
}

func blendGradient(p gradientPalette, x, y, w, h int, rng *rand.Rand) color.RGBA {
	t := (float64(x)/float64(w) + float64(y)/float64(h)) / 2
	noise := (rng.Float64() - 0.5) * 0.08
	t = clamp01(t + noise)
	return color.RGBA{
		R: lerp(p.from.R, p.to.R, t),
		G: lerp(p.from.G, p.to.G, t),
		B: lerp(p.from.B, p.to.B, t),
		A: 255,
	}
}

func colorAt(img image.Image, x, y int) color.RGBA {
	r, g, b, _ := img.At(img.Bounds().Min.X+x, img.Bounds().Min.Y+y).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
}

// mix blends toward the generated color by strength: strength 0 keeps the
// init image, strength 1 replaces it.
func mix(base, gen color.RGBA, strength float64) color.RGBA {
	s := clamp01(strength)
	return color.RGBA{
		R: lerp(base.R, gen.R, s),
		G: lerp(base.G, gen.G, s),
		B: lerp(base.B, gen.B, s),
		A: 255,
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
