// Package providers wires the built-in backends into a plugin registry.
// Built-ins are registered at process start with no discovery step and can
// never be excluded by a failed plugin scan.
package providers

import (
	"github.com/cecil-the-coder/imagegen-kit/pkg/plugin"
	"github.com/cecil-the-coder/imagegen-kit/pkg/providers/huggingface"
	"github.com/cecil-the-coder/imagegen-kit/pkg/providers/local"
	"github.com/cecil-the-coder/imagegen-kit/pkg/providers/replicate"
	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// RegisterBuiltins registers the huggingface, replicate, and local backends
// with the registry.
func RegisterBuiltins(reg *plugin.Registry) error {
	builtins := []*plugin.Static{
		{
			Meta: plugin.Metadata{
				Name:               huggingface.Name,
				DisplayName:        "HuggingFace",
				Version:            "1.0.0",
				Author:             "Cecil",
				Description:        "Generate images using the HuggingFace Inference API",
				Category:           plugin.CategoryBackend,
				RequiresCredential: true,
			},
			Factory: func(cfg types.BackendConfig) (types.Backend, error) {
				return huggingface.New(cfg)
			},
		},
		{
			Meta: plugin.Metadata{
				Name:               replicate.Name,
				DisplayName:        "Replicate",
				Version:            "1.0.0",
				Author:             "Cecil",
				Description:        "Generate images using the Replicate API",
				Category:           plugin.CategoryBackend,
				RequiresCredential: true,
			},
			Factory: func(cfg types.BackendConfig) (types.Backend, error) {
				return replicate.New(cfg)
			},
		},
		{
			Meta: plugin.Metadata{
				Name:        local.Name,
				DisplayName: "Local",
				Version:     "1.0.0",
				Author:      "Cecil",
				Description: "Generate images locally with the procedural renderer",
				Category:    plugin.CategoryBackend,
			},
			Factory: func(cfg types.BackendConfig) (types.Backend, error) {
				return local.New(cfg)
			},
		},
	}

	for _, b := range builtins {
		if err := reg.RegisterBuiltin(b); err != nil {
			return err
		}
	}
	return nil
}
