package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and work without any config file.
const (
	defaultDatabasePath          = "schema-api.db"
	defaultMaxOpenConns          = 4
	defaultSchemaPath            = "schema.toml"
	defaultAddr                  = "127.0.0.1:8080"
	defaultBasePath              = "/schema-api"
	defaultGzipLevel             = 0
	defaultRelationshipBatchSize = 500
	defaultMaxBodySize           = "10MiB"
	defaultShutdownTimeout       = "30s"
	defaultRestoreTolerance      = "1s"
	defaultPolicy                = "allow"
	defaultBroadcastMode         = ModeSync
	defaultViewerType            = "users"
	defaultQueueSize             = 1024
	defaultSubscriberBuffer      = 64
	defaultLogLevel              = "info"
	defaultLogFormat             = "auto"
)

// Broadcasting modes.
const (
	ModeSync        = "sync"
	ModeModelEvents = "model-events"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         defaultDatabasePath,
			MaxOpenConns: defaultMaxOpenConns,
		},
		Schema: SchemaConfig{
			Path:       defaultSchemaPath,
			Resolvers:  []string{"registry", "table"},
			Decorators: []string{"validating", "caching"},
		},
		HTTP: HTTPConfig{
			Addr:                  defaultAddr,
			BasePath:              defaultBasePath,
			GzipLevel:             defaultGzipLevel,
			RelationshipBatchSize: defaultRelationshipBatchSize,
			MaxBodySize:           defaultMaxBodySize,
			ShutdownTimeout:       defaultShutdownTimeout,
		},
		Sync: SyncConfig{
			RestoreTolerance: defaultRestoreTolerance,
		},
		Auth: AuthConfig{
			DefaultPolicy: defaultPolicy,
		},
		Broadcasting: BroadcastingConfig{
			Mode:             defaultBroadcastMode,
			ViewerType:       defaultViewerType,
			QueueSize:        defaultQueueSize,
			SubscriberBuffer: defaultSubscriberBuffer,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
