// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for schema-api. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags) and a
// file watcher that applies the hot-reloadable settings of a running server.
package config

// Config is the top-level configuration structure parsed from a TOML file.
// Every section is optional; omitted keys keep their defaults.
type Config struct {
	Database     DatabaseConfig     `toml:"database"`
	Schema       SchemaConfig       `toml:"schema"`
	HTTP         HTTPConfig         `toml:"http"`
	Sync         SyncConfig         `toml:"sync"`
	Auth         AuthConfig         `toml:"auth"`
	Broadcasting BroadcastingConfig `toml:"broadcasting"`
	Logging      LoggingConfig      `toml:"logging"`
}

// DatabaseConfig locates the SQLite database and its migrations.
// An empty migrations_dir means the server runs no migrations on start.
type DatabaseConfig struct {
	Path          string `toml:"path"`
	MigrationsDir string `toml:"migrations_dir"`
	MaxOpenConns  int    `toml:"max_open_conns"`
}

// SchemaConfig controls how the entity directory is assembled.
type SchemaConfig struct {
	Path         string   `toml:"path"`
	Autodiscover bool     `toml:"autodiscover"`
	Resolvers    []string `toml:"resolvers"`
	Decorators   []string `toml:"decorators"`
}

// HTTPConfig controls the listener and the request-level limits.
type HTTPConfig struct {
	Addr                  string   `toml:"addr"`
	BasePath              string   `toml:"base_path"`
	GzipLevel             int      `toml:"gzip_level"`
	RelationshipBatchSize int      `toml:"relationship_batch_size"`
	MaxBodySize           string   `toml:"max_body_size"`
	RateLimit             float64  `toml:"rate_limit"`
	RateBurst             int      `toml:"rate_burst"`
	ShutdownTimeout       string   `toml:"shutdown_timeout"`
	AllowedOrigins        []string `toml:"allowed_origins"`
}

// SyncConfig controls the mutation pipeline.
type SyncConfig struct {
	RestoreTolerance string `toml:"restore_tolerance"`
}

// AuthConfig controls actor tokens and the fallback access policy.
type AuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	JWTIssuer     string `toml:"jwt_issuer"`
	DefaultPolicy string `toml:"default_policy"`
}

// BroadcastingConfig controls change broadcasting. In "sync" mode only
// batches applied through the sync endpoint are broadcast; in
// "model-events" mode every committed write is.
type BroadcastingConfig struct {
	Enabled          bool   `toml:"enabled"`
	Mode             string `toml:"mode"`
	ViewerType       string `toml:"viewer_type"`
	QueueSize        int    `toml:"queue_size"`
	SubscriberBuffer int    `toml:"subscriber_buffer"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogFile   string `toml:"log_file"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	Addr       *string // --addr flag
	Database   *string // --db flag
	LogLevel   *string // --log-level flag
}
