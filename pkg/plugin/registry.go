package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// DescriptorFile is the file a plugin directory must contain to be
// considered a plugin candidate.
const DescriptorFile = "plugin.yaml"

// descriptor is the on-disk shape of a plugin.yaml file. The plugin section
// holds the metadata; construct names the compiled-in Construct to bind
// (defaults to the plugin name); config is passed to the construct verbatim.
type descriptor struct {
	Plugin    Metadata       `yaml:"plugin"`
	Construct string         `yaml:"construct"`
	Config    map[string]any `yaml:"config"`
}

// DependencyResolver reports whether a declared plugin dependency is
// resolvable in the host environment.
type DependencyResolver func(dep string) bool

// Resolved is a successful registry lookup: the plugin's metadata plus the
// factory that builds its backend instances.
type Resolved struct {
	Meta Metadata
	New  types.BackendFactoryFunc
}

// Registry discovers, validates, and manages the lifecycle of backend
// plugins. All mutation happens during Discover and Shutdown under the
// registry lock; lookups afterwards are read-only and safe for unlimited
// concurrent readers.
type Registry struct {
	mu         sync.RWMutex
	constructs map[string]Construct
	records    map[string]*Record
	builtins   []string
	resolveDep DependencyResolver
	log        zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithDependencyResolver overrides how declared plugin dependencies are
// checked. The default resolver accepts any registered construct or
// built-in name.
func WithDependencyResolver(r DependencyResolver) Option {
	return func(reg *Registry) { reg.resolveDep = r }
}

// NewRegistry creates a plugin registry.
func NewRegistry(log zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		constructs: make(map[string]Construct),
		records:    make(map[string]*Record),
		log:        log.With().Str("component", "plugin_registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolveDep == nil {
		r.resolveDep = r.hostResolvable
	}
	return r
}

// RegisterConstruct registers a compiled-in plugin constructor under a name.
// Descriptors discovered later bind to constructs by this name. Registering
// the same name twice overwrites, matching last-wins for host wiring.
func (r *Registry) RegisterConstruct(name string, c Construct) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructs[name] = c
}

// RegisterBuiltin registers and initializes a built-in plugin. Built-ins
// skip discovery, are always resolvable once registered, and can never be
// excluded by a failed directory scan. An initialization failure is
// returned to the caller since a broken built-in is host miswiring.
func (r *Registry) RegisterBuiltin(p Plugin) error {
	meta := p.Metadata()
	if err := meta.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[meta.Name]; ok && existing.State == StateInitialized {
		r.log.Warn().Str("plugin", meta.Name).Msg("built-in plugin already registered, overwriting")
	}

	rec := &Record{Meta: meta, State: StateDiscovered, Builtin: true, plugin: p}
	rec.advance(StateDependenciesValidated)
	if err := p.Initialize(); err != nil {
		rec.fail(fmt.Sprintf("initialize: %v", err))
		r.records[meta.Name] = rec
		return types.NewConfigurationError(meta.Name, fmt.Sprintf("built-in plugin failed to initialize: %v", err))
	}
	rec.advance(StateInitialized)
	r.records[meta.Name] = rec
	r.builtins = append(r.builtins, meta.Name)
	r.log.Info().Str("plugin", meta.Name).Msg("registered built-in plugin")
	return nil
}

// Discover scans root one level deep for plugin directories, loading every
// candidate that carries a descriptor file. One bad plugin never aborts the
// scan; it is recorded as failed and reported through Diagnostics. Discover
// returns the names of plugins that reached the initialized state.
func (r *Registry) Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			r.log.Info().Str("dir", root).Msg("plugins directory does not exist, creating")
			if mkErr := os.MkdirAll(root, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create plugins directory: %w", mkErr)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("read plugins directory: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var usable []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		descPath := filepath.Join(dir, DescriptorFile)
		if _, err := os.Stat(descPath); err != nil {
			r.log.Debug().Str("dir", dir).Msg("skipping: no descriptor file")
			continue
		}

		rec := r.loadLocked(entry.Name(), dir, descPath)
		r.records[rec.Meta.Name] = rec
		if rec.State == StateInitialized {
			usable = append(usable, rec.Meta.Name)
			r.log.Info().Str("plugin", rec.Meta.Name).Str("version", rec.Meta.Version).Msg("discovered plugin")
		} else {
			r.log.Error().Str("plugin", rec.Meta.Name).Str("reason", rec.Reason).Msg("plugin failed to load")
		}
	}

	sort.Strings(usable)
	r.log.Info().Int("count", len(usable)).Strs("plugins", usable).Msg("plugin discovery complete")
	return usable, nil
}

// loadLocked runs one plugin directory through the full lifecycle:
// descriptor parse, metadata validation, dependency check, construction,
// and initialization. Caller holds r.mu.
func (r *Registry) loadLocked(dirName, dir, descPath string) *Record {
	rec := &Record{Meta: Metadata{Name: dirName}, State: StateDiscovered, Dir: dir}

	raw, err := os.ReadFile(descPath)
	if err != nil {
		rec.fail(fmt.Sprintf("read descriptor: %v", err))
		return rec
	}
	var desc descriptor
	if err := yaml.Unmarshal(raw, &desc); err != nil {
		rec.fail(fmt.Sprintf("parse descriptor: %v", err))
		return rec
	}
	if desc.Plugin.Category == "" {
		desc.Plugin.Category = CategoryBackend
	}
	if err := desc.Plugin.Validate(); err != nil {
		// Keep the directory name so the diagnostic has an identity even
		// when the declared name is the invalid part.
		rec.fail(err.Error())
		return rec
	}
	rec.Meta = desc.Plugin

	if r.isBuiltinLocked(desc.Plugin.Name) {
		rec.fail(fmt.Sprintf("plugin name %q collides with a built-in", desc.Plugin.Name))
		return rec
	}

	if missing := r.missingDeps(desc.Plugin.Dependencies); len(missing) > 0 {
		rec.fail(fmt.Sprintf("unresolved dependencies: %s", strings.Join(missing, ", ")))
		return rec
	}
	rec.advance(StateDependenciesValidated)

	constructName := desc.Construct
	if constructName == "" {
		constructName = desc.Plugin.Name
	}
	construct, ok := r.constructs[constructName]
	if !ok {
		rec.fail(fmt.Sprintf("descriptor names unknown construct %q", constructName))
		return rec
	}

	p, err := construct(desc.Config)
	if err != nil {
		rec.fail(fmt.Sprintf("construct: %v", err))
		return rec
	}
	if err := p.Initialize(); err != nil {
		rec.fail(fmt.Sprintf("initialize: %v", err))
		return rec
	}
	rec.plugin = p
	rec.advance(StateInitialized)
	return rec
}

func (r *Registry) missingDeps(deps []string) []string {
	var missing []string
	for _, dep := range deps {
		if !r.resolveDep(dep) {
			missing = append(missing, dep)
		}
	}
	return missing
}

// hostResolvable is the default dependency resolver: a dependency resolves
// if a construct or built-in of that name is registered.
func (r *Registry) hostResolvable(dep string) bool {
	if _, ok := r.constructs[dep]; ok {
		return true
	}
	return r.isBuiltinLocked(dep)
}

func (r *Registry) isBuiltinLocked(name string) bool {
	for _, b := range r.builtins {
		if b == name {
			return true
		}
	}
	return false
}

// Resolve returns the backend factory and metadata for an initialized
// plugin or built-in. Unknown or failed plugins yield a ConfigurationError.
func (r *Registry) Resolve(name string) (Resolved, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[name]
	if !ok {
		return Resolved{}, types.NewConfigurationError(name,
			fmt.Sprintf("unknown backend, available: %s", strings.Join(r.availableLocked(), ", ")))
	}
	if rec.State != StateInitialized {
		return Resolved{}, types.NewConfigurationError(name,
			fmt.Sprintf("plugin is not usable (state=%s): %s", rec.State, rec.Reason))
	}
	return Resolved{Meta: rec.Meta, New: rec.plugin.Backend()}, nil
}

// Available lists the names of all currently resolvable plugins, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableLocked()
}

func (r *Registry) availableLocked() []string {
	names := make([]string, 0, len(r.records))
	for name, rec := range r.records {
		if rec.State == StateInitialized {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Record returns a copy of the lifecycle record for a plugin.
func (r *Registry) Record(name string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Diagnostics reports every plugin that failed to load, in name order.
// Failed plugins are excluded from the registry but never silently dropped.
func (r *Registry) Diagnostics() []Diagnostic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Diagnostic
	for name, rec := range r.records {
		if rec.State == StateFailed {
			out = append(out, Diagnostic{Name: name, Dir: rec.Dir, State: rec.State, Reason: rec.Reason})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Unload cleans up and retires a single plugin. Unloading a plugin that
// never initialized, or that was already cleaned up, is a no-op.
func (r *Registry) Unload(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[name]
	if !ok || rec.State != StateInitialized {
		return
	}
	rec.plugin.Cleanup()
	rec.advance(StateCleanedUp)
	r.log.Info().Str("plugin", name).Msg("plugin unloaded")
}

// Shutdown invokes the cleanup hook exactly once for every plugin that
// reached the initialized state. Calling Shutdown twice is a no-op; records
// already cleaned up are skipped.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, rec := range r.records {
		if rec.State != StateInitialized {
			continue
		}
		rec.plugin.Cleanup()
		rec.advance(StateCleanedUp)
		r.log.Info().Str("plugin", name).Msg("plugin cleaned up")
	}
}
