package config

import (
	"fmt"
	"io"
	"strings"
)

// redacted replaces secrets in rendered output.
const redacted = "(set)"

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied. Secrets are redacted.
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	if path != "" {
		ew.printf("# Effective configuration (file: %s)\n\n", path)
	} else {
		ew.printf("# Effective configuration (defaults)\n\n")
	}

	renderDatabaseSection(ew, &cfg.Database)
	renderSchemaSection(ew, &cfg.Schema)
	renderHTTPSection(ew, &cfg.HTTP)
	renderSyncSection(ew, &cfg.Sync)
	renderAuthSection(ew, &cfg.Auth)
	renderBroadcastingSection(ew, &cfg.Broadcasting)
	renderLoggingSection(ew, &cfg.Logging)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderDatabaseSection(ew *errWriter, d *DatabaseConfig) {
	ew.printf("[database]\n")
	ew.printf("  path           = %q\n", d.Path)

	if d.MigrationsDir != "" {
		ew.printf("  migrations_dir = %q\n", d.MigrationsDir)
	}

	ew.printf("  max_open_conns = %d\n", d.MaxOpenConns)
	ew.printf("\n")
}

func renderSchemaSection(ew *errWriter, s *SchemaConfig) {
	ew.printf("[schema]\n")
	ew.printf("  path         = %q\n", s.Path)
	ew.printf("  autodiscover = %t\n", s.Autodiscover)
	ew.printf("  resolvers    = [%s]\n", joinQuoted(s.Resolvers))
	ew.printf("  decorators   = [%s]\n", joinQuoted(s.Decorators))
	ew.printf("\n")
}

func renderHTTPSection(ew *errWriter, h *HTTPConfig) {
	ew.printf("[http]\n")
	ew.printf("  addr                    = %q\n", h.Addr)
	ew.printf("  base_path               = %q\n", h.BasePath)
	ew.printf("  gzip_level              = %d\n", h.GzipLevel)
	ew.printf("  relationship_batch_size = %d\n", h.RelationshipBatchSize)
	ew.printf("  max_body_size           = %q\n", h.MaxBodySize)
	ew.printf("  rate_limit              = %g\n", h.RateLimit)
	ew.printf("  rate_burst              = %d\n", h.RateBurst)
	ew.printf("  shutdown_timeout        = %q\n", h.ShutdownTimeout)

	if len(h.AllowedOrigins) > 0 {
		ew.printf("  allowed_origins         = [%s]\n", joinQuoted(h.AllowedOrigins))
	}

	ew.printf("\n")
}

func renderSyncSection(ew *errWriter, s *SyncConfig) {
	ew.printf("[sync]\n")
	ew.printf("  restore_tolerance = %q\n", s.RestoreTolerance)
	ew.printf("\n")
}

func renderAuthSection(ew *errWriter, a *AuthConfig) {
	ew.printf("[auth]\n")

	if a.JWTSecret != "" {
		ew.printf("  jwt_secret     = %s\n", redacted)
	}

	if a.JWTIssuer != "" {
		ew.printf("  jwt_issuer     = %q\n", a.JWTIssuer)
	}

	ew.printf("  default_policy = %q\n", a.DefaultPolicy)
	ew.printf("\n")
}

func renderBroadcastingSection(ew *errWriter, b *BroadcastingConfig) {
	ew.printf("[broadcasting]\n")
	ew.printf("  enabled           = %t\n", b.Enabled)
	ew.printf("  mode              = %q\n", b.Mode)
	ew.printf("  viewer_type       = %q\n", b.ViewerType)
	ew.printf("  queue_size        = %d\n", b.QueueSize)
	ew.printf("  subscriber_buffer = %d\n", b.SubscriberBuffer)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)
	ew.printf("  log_format = %q\n", l.LogFormat)

	if l.LogFile != "" {
		ew.printf("  log_file   = %q\n", l.LogFile)
	}
}

// joinQuoted formats a string slice as comma-separated quoted values.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, ", ")
}
