// Package factory turns backend names plus construction arguments into live
// backend instances. It is the single point where credentials are checked
// against plugin metadata and where instance caching, when enabled, is
// serialized per construction key.
package factory

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cecil-the-coder/imagegen-kit/pkg/plugin"
	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// Handle is a live backend plus the metadata of the plugin it came from.
// A handle is either owned by a single dispatch or borrowed read-only from
// the factory cache; it is never shared for concurrent mutation.
type Handle struct {
	Backend types.Backend
	Meta    plugin.Metadata
}

// Factory resolves backend names through the plugin registry and constructs
// instances. Construction is not cached by default, so configuration changes
// (a swapped credential, a different model) take effect on the next request.
type Factory struct {
	registry *plugin.Registry
	log      zerolog.Logger

	cacheEnabled bool
	mu           sync.Mutex
	cache        map[cacheKey]*Handle
	inflight     map[cacheKey]*construction
}

type cacheKey struct {
	name string
	cfg  types.BackendConfig
}

// construction tracks an in-progress build so concurrent Create calls for
// the identical key wait for one construction instead of racing their own.
type construction struct {
	done   chan struct{}
	handle *Handle
	err    error
}

// Option configures a Factory.
type Option func(*Factory)

// WithCache enables instance caching keyed by the exact (name, config)
// tuple. Useful for cost-sensitive backends such as a loaded local model.
func WithCache() Option {
	return func(f *Factory) { f.cacheEnabled = true }
}

// New creates a backend factory backed by the given plugin registry.
func New(registry *plugin.Registry, log zerolog.Logger, opts ...Option) *Factory {
	f := &Factory{
		registry: registry,
		log:      log.With().Str("component", "backend_factory").Logger(),
		cache:    make(map[cacheKey]*Handle),
		inflight: make(map[cacheKey]*construction),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create resolves name and constructs a backend with the given arguments.
// It fails with a *types.ConfigurationError when the name is unknown, the
// plugin did not initialize, or a required credential is missing.
func (f *Factory) Create(name string, cfg types.BackendConfig) (*Handle, error) {
	resolved, err := f.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	if resolved.Meta.RequiresCredential && cfg.APIKey == "" {
		return nil, types.NewConfigurationError(name, "an API key is required for this backend")
	}

	if !f.cacheEnabled {
		return f.construct(name, resolved, cfg)
	}
	return f.cachedCreate(name, resolved, cfg)
}

// cachedCreate serves from the cache, serializing construction per key so an
// in-flight build never races another build for the identical key. Distinct
// keys construct concurrently.
func (f *Factory) cachedCreate(name string, resolved plugin.Resolved, cfg types.BackendConfig) (*Handle, error) {
	key := cacheKey{name: name, cfg: cfg}

	f.mu.Lock()
	if h, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return h, nil
	}
	if c, ok := f.inflight[key]; ok {
		f.mu.Unlock()
		<-c.done
		return c.handle, c.err
	}
	c := &construction{done: make(chan struct{})}
	f.inflight[key] = c
	f.mu.Unlock()

	c.handle, c.err = f.construct(name, resolved, cfg)

	f.mu.Lock()
	delete(f.inflight, key)
	if c.err == nil {
		f.cache[key] = c.handle
	}
	f.mu.Unlock()
	close(c.done)

	return c.handle, c.err
}

func (f *Factory) construct(name string, resolved plugin.Resolved, cfg types.BackendConfig) (*Handle, error) {
	backend, err := resolved.New(cfg)
	if err != nil {
		return nil, types.NewConfigurationError(name, fmt.Sprintf("backend construction failed: %v", err))
	}
	f.log.Debug().Str("backend", name).Str("model", cfg.Model).Msg("constructed backend")
	return &Handle{Backend: backend, Meta: resolved.Meta}, nil
}

// Available lists the backend names the factory can currently construct.
// An empty list means nothing is registrable; callers report that condition
// rather than crash, so the health endpoint can reflect it.
func (f *Factory) Available() []string {
	return f.registry.Available()
}

// IsSupported reports whether name resolves to a usable backend.
func (f *Factory) IsSupported(name string) bool {
	_, err := f.registry.Resolve(name)
	return err == nil
}
