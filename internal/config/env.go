package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "SCHEMA_API_CONFIG"
	EnvDatabase = "SCHEMA_API_DB"
	EnvAddr     = "SCHEMA_API_ADDR"
	EnvLogLevel = "SCHEMA_API_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // SCHEMA_API_CONFIG: override config file path
	Database   string // SCHEMA_API_DB: database path
	Addr       string // SCHEMA_API_ADDR: listen address
	LogLevel   string // SCHEMA_API_LOG_LEVEL: log level
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Database:   os.Getenv(EnvDatabase),
		Addr:       os.Getenv(EnvAddr),
		LogLevel:   os.Getenv(EnvLogLevel),
	}
}
