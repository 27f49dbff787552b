package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger returns a debug-level logger that writes to t.Log, so config
// debug output appears in test output.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))

	return len(p), nil
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	tomlContent := `
[database]
path = "/srv/app.db"
migrations_dir = "/srv/migrations"
max_open_conns = 8

[schema]
path = "/srv/schema.yaml"
autodiscover = true
resolvers = ["table"]
decorators = ["caching"]

[http]
addr = ":9000"
base_path = "/api"
gzip_level = 6
relationship_batch_size = 100
max_body_size = "2MB"
rate_limit = 50.5
rate_burst = 10
shutdown_timeout = "5s"
allowed_origins = ["app.example.com"]

[sync]
restore_tolerance = "3s"

[auth]
jwt_secret = "0123456789abcdef0123"
jwt_issuer = "schema-api"
default_policy = "authenticated"

[broadcasting]
enabled = true
mode = "model-events"
viewer_type = "accounts"
queue_size = 16
subscriber_buffer = 8

[logging]
log_level = "debug"
log_format = "json"
log_file = "/var/log/schema-api.log"
`

	path := writeTestConfig(t, tomlContent)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/app.db", cfg.Database.Path)
	assert.Equal(t, "/srv/migrations", cfg.Database.MigrationsDir)
	assert.Equal(t, 8, cfg.Database.MaxOpenConns)

	assert.Equal(t, "/srv/schema.yaml", cfg.Schema.Path)
	assert.True(t, cfg.Schema.Autodiscover)
	assert.Equal(t, []string{"table"}, cfg.Schema.Resolvers)
	assert.Equal(t, []string{"caching"}, cfg.Schema.Decorators)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "/api", cfg.HTTP.BasePath)
	assert.Equal(t, 6, cfg.HTTP.GzipLevel)
	assert.Equal(t, 100, cfg.HTTP.RelationshipBatchSize)
	assert.Equal(t, int64(2_000_000), cfg.HTTP.MaxBodyBytes())
	assert.InDelta(t, 50.5, cfg.HTTP.RateLimit, 0.001)
	assert.Equal(t, 10, cfg.HTTP.RateBurst)
	assert.Equal(t, "5s", cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, []string{"app.example.com"}, cfg.HTTP.AllowedOrigins)

	assert.Equal(t, "3s", cfg.Sync.RestoreToleranceDuration().String())

	assert.Equal(t, "0123456789abcdef0123", cfg.Auth.JWTSecret)
	assert.Equal(t, "schema-api", cfg.Auth.JWTIssuer)
	assert.Equal(t, "authenticated", cfg.Auth.DefaultPolicy)

	assert.True(t, cfg.Broadcasting.Enabled)
	assert.Equal(t, ModeModelEvents, cfg.Broadcasting.Mode)
	assert.Equal(t, "accounts", cfg.Broadcasting.ViewerType)
	assert.Equal(t, 16, cfg.Broadcasting.QueueSize)
	assert.Equal(t, 8, cfg.Broadcasting.SubscriberBuffer)

	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "json", cfg.Logging.LogFormat)
	assert.Equal(t, "/var/log/schema-api.log", cfg.Logging.LogFile)
}

func TestLoad_MinimalConfig_UsesDefaults(t *testing.T) {
	path := writeTestConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeTestConfig(t, `[http
not valid toml`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	require.Error(t, err)
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeTestConfig(t, "[http]\ngzip_level = 12\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "http.gzip_level")
}

func TestLoad_TypeMismatch(t *testing.T) {
	path := writeTestConfig(t, "[http]\ngzip_level = \"fast\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadOrDefault_FileExists(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"debug\"\n")
	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
}

func TestLoadOrDefault_FileNotFound(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOrDefault_EmptyPath(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialSection_UsesDefaults(t *testing.T) {
	path := writeTestConfig(t, "[http]\naddr = \":7000\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, "/schema-api", cfg.HTTP.BasePath)
	assert.Equal(t, "10MiB", cfg.HTTP.MaxBodySize)
	assert.Equal(t, "info", cfg.Logging.LogLevel)
}

func TestResolve_NoConfigFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.toml")

	cfg, path, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: missing})
	require.NoError(t, err)
	assert.Equal(t, missing, path)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_CLIConfigPathOverridesEnv(t *testing.T) {
	envPath := writeTestConfig(t, "[http]\naddr = \":1111\"\n")
	cliPath := writeTestConfig(t, "[http]\naddr = \":2222\"\n")

	cfg, path, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{ConfigPath: cliPath})
	require.NoError(t, err)
	assert.Equal(t, cliPath, path)
	assert.Equal(t, ":2222", cfg.HTTP.Addr)
}

func TestResolve_EnvConfigPath(t *testing.T) {
	envPath := writeTestConfig(t, "[http]\naddr = \":1111\"\n")

	cfg, path, err := Resolve(EnvOverrides{ConfigPath: envPath}, CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, envPath, path)
	assert.Equal(t, ":1111", cfg.HTTP.Addr)
}

func TestResolve_Precedence(t *testing.T) {
	path := writeTestConfig(t, `
[database]
path = "file.db"

[http]
addr = ":1000"

[logging]
log_level = "warn"
`)

	env := EnvOverrides{Database: "env.db", Addr: ":2000", LogLevel: "error"}
	cliAddr := ":3000"

	cfg, _, err := Resolve(env, CLIOverrides{ConfigPath: path, Addr: &cliAddr})
	require.NoError(t, err)

	// Env beats the file, CLI beats env.
	assert.Equal(t, "env.db", cfg.Database.Path)
	assert.Equal(t, ":3000", cfg.HTTP.Addr)
	assert.Equal(t, "error", cfg.Logging.LogLevel)
}

func TestResolve_InvalidOverride(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.toml")
	level := "chatty"

	_, _, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: missing, LogLevel: &level})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.log_level")
}

func TestResolve_InvalidConfigFile(t *testing.T) {
	path := writeTestConfig(t, "[http]\nnot_a_key = 1\n")

	_, _, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}
