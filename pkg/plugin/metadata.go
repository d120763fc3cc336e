package plugin

import (
	"fmt"
	"regexp"

	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// Category is the kind of functionality a plugin provides. Only backend
// plugins exist today.
type Category string

const (
	CategoryBackend Category = "backend"
)

// nameRe is the shape every plugin name must match: lowercase alphanumerics
// and underscores, no whitespace.
var nameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// Metadata describes a plugin. It is immutable after load; the registry
// hands out copies only.
type Metadata struct {
	// Name uniquely identifies the plugin. Must match ^[a-z0-9_]+$.
	Name string `yaml:"name"`

	// DisplayName is the human-readable name for UI display.
	DisplayName string `yaml:"display_name"`

	// Version is the plugin's semantic version string.
	Version string `yaml:"version"`

	// Author is the plugin author.
	Author string `yaml:"author"`

	// Description briefly describes the plugin's functionality.
	Description string `yaml:"description"`

	// Category is the plugin category. Defaults to backend.
	Category Category `yaml:"category"`

	// Dependencies lists named constructs that must be resolvable in the
	// host before the plugin can initialize.
	Dependencies []string `yaml:"dependencies"`

	// RequiresCredential marks plugins whose backend needs an API key.
	RequiresCredential bool `yaml:"requires_credential"`
}

// Validate checks the structural constraints on metadata. Violations are
// load-time errors; a plugin with invalid metadata is never registered.
func (m Metadata) Validate() error {
	if m.Name == "" {
		return types.NewConfigurationError("", "plugin metadata is missing a name")
	}
	if !nameRe.MatchString(m.Name) {
		return types.NewConfigurationError(m.Name,
			fmt.Sprintf("plugin name must match %s (lowercase, no whitespace)", nameRe.String()))
	}
	if m.Version == "" {
		return types.NewConfigurationError(m.Name, "plugin metadata is missing a version")
	}
	if m.Category == "" {
		return types.NewConfigurationError(m.Name, "plugin metadata is missing a category")
	}
	if m.Category != CategoryBackend {
		return types.NewConfigurationError(m.Name,
			fmt.Sprintf("unsupported plugin category %q", m.Category))
	}
	return nil
}

// Plugin is the lifecycle contract a registered construct fulfills. The
// registry calls Initialize exactly once before the plugin becomes usable
// and Cleanup exactly once on shutdown or explicit unload.
type Plugin interface {
	// Metadata returns the plugin's metadata. For discovered plugins this
	// must agree with the descriptor file.
	Metadata() Metadata

	// Initialize performs plugin setup (loading models, opening
	// connections). Returning an error marks the plugin failed; it is
	// never registered as usable.
	Initialize() error

	// Cleanup releases plugin resources. Implementations must tolerate the
	// registry's at-most-once guarantee but need not be idempotent
	// themselves.
	Cleanup()

	// Backend returns the factory producing this plugin's backend
	// instances.
	Backend() types.BackendFactoryFunc
}

// Construct builds a plugin instance from its descriptor-supplied
// configuration. Constructs are compiled into the host and registered by
// name; descriptors bind directories to them at discovery time.
type Construct func(config map[string]any) (Plugin, error)
