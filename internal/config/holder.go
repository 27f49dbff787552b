package config

import "sync"

// Holder provides thread-safe access to a mutable *Config and an immutable
// config file path. The server and the config watcher share one Holder, so
// a reload updates config in exactly one place.
type Holder struct {
	mu   sync.RWMutex
	cfg  *Config
	path string // immutable after construction

	env EnvOverrides
	cli CLIOverrides
}

// NewHolder creates a Holder with the initial config and config file path.
func NewHolder(cfg *Config, path string) *Holder {
	return &Holder{
		cfg:  cfg,
		path: path,
	}
}

// Config returns the current config snapshot. Thread-safe (read lock).
func (h *Holder) Config() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.cfg
}

// Path returns the config file path.
func (h *Holder) Path() string {
	return h.path
}

// Update replaces the config. Thread-safe (write lock).
func (h *Holder) Update(cfg *Config) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cfg = cfg
}

// SetOverrides records the environment and CLI overrides that Reload
// applies on top of the reloaded file.
func (h *Holder) SetOverrides(env EnvOverrides, cli CLIOverrides) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.env = env
	h.cli = cli
}

func (h *Holder) applyOverrides(cfg *Config) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.env.Apply(cfg)
	h.cli.Apply(cfg)
}

// GzipLevel returns the current default compression level.
func (h *Holder) GzipLevel() int {
	return h.Config().HTTP.GzipLevel
}
