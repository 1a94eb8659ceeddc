package vectordb

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds named dialect configurations plus the active name used
// when a query does not override it. Prefer passing a Registry into the
// compiler over mutating the package-level default from concurrent call
// sites.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*Config
	active  string
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for configuration warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a registry pre-populated with the builtin dialects
// and "default" active.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		configs: make(map[string]*Config),
		active:  DialectDefault,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, cfg := range builtinConfigs() {
		r.configs[cfg.Name] = cfg
	}
	return r
}

// Register adds or replaces a named configuration.
func (r *Registry) Register(name string, cfg *Config) error {
	if name == "" {
		return fmt.Errorf("vectordb: config name is required")
	}
	if cfg == nil {
		return fmt.Errorf("vectordb: config is required")
	}
	if cfg.Strategy == nil {
		return fmt.Errorf("vectordb: config %q has no strategy", name)
	}
	cfg.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = cfg
	return nil
}

// SetActive switches the registry-wide active dialect. An unregistered
// name is a non-fatal configuration error: it logs a warning and falls
// back to "default".
func (r *Registry) SetActive(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configs[name]; !ok {
		r.logger.Warn("vector dialect not registered, falling back to default",
			"requested", name, "active", DialectDefault)
		r.active = DialectDefault
		return
	}
	r.active = name
}

// ActiveName returns the name of the active dialect.
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Get returns a registered configuration by name.
func (r *Registry) Get(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Resolve returns the configuration for a single compile. A non-empty
// override takes precedence over the active name without mutating it; an
// unregistered override falls back to "default" with a warning.
func (r *Registry) Resolve(override string) *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := r.active
	if override != "" {
		name = override
	}
	if cfg, ok := r.configs[name]; ok {
		return cfg
	}
	r.logger.Warn("vector dialect not registered, falling back to default",
		"requested", name)
	return r.configs[DialectDefault]
}

// Names returns all registered dialect names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// defaultRegistry backs the process-wide registration surface. Concurrent
// mutation of the active name is serialized by the registry mutex, but
// callers that need isolation should construct their own Registry.
var defaultRegistry = NewRegistry(WithLogger(slog.Default()))

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// RegisterVectorDBConfig registers a named configuration on the
// process-wide registry.
func RegisterVectorDBConfig(name string, cfg *Config) error {
	return defaultRegistry.Register(name, cfg)
}

// SetVectorDBConfig switches the process-wide active dialect, falling
// back to "default" if the name is unregistered.
func SetVectorDBConfig(name string) {
	defaultRegistry.SetActive(name)
}

// GetActiveVectorDBConfig returns the process-wide active dialect name.
func GetActiveVectorDBConfig() string {
	return defaultRegistry.ActiveName()
}
