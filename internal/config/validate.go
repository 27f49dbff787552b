package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Validation range constants.
const (
	minGzipLevel        = 0
	maxGzipLevel        = 9
	minBatchSize        = 1
	maxBatchSize        = 10_000
	minMaxOpenConns     = 1
	minShutdownTimeout  = time.Second
	minBodySize         = 1024
	minJWTSecretLength  = 16
	minSubscriberBuffer = 1
)

var (
	validResolvers  = []string{"registry", "table"}
	validDecorators = []string{"validating", "caching"}
	validPolicies   = []string{"allow", "deny", "authenticated"}
	validModes      = []string{ModeSync, ModeModelEvents}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"auto", "text", "json"}
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateDatabase(&cfg.Database)...)
	errs = append(errs, validateSchema(&cfg.Schema)...)
	errs = append(errs, validateHTTP(&cfg.HTTP)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateBroadcasting(&cfg.Broadcasting)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateDatabase(d *DatabaseConfig) []error {
	var errs []error

	if d.Path == "" {
		errs = append(errs, errors.New("database.path: must not be empty"))
	}

	if d.MaxOpenConns < minMaxOpenConns {
		errs = append(errs, fmt.Errorf("database.max_open_conns: must be >= %d, got %d",
			minMaxOpenConns, d.MaxOpenConns))
	}

	return errs
}

func validateSchema(s *SchemaConfig) []error {
	var errs []error

	if len(s.Resolvers) == 0 {
		errs = append(errs, errors.New("schema.resolvers: must name at least one resolver"))
	}

	errs = append(errs, validateOneOfEach("schema.resolvers", s.Resolvers, validResolvers)...)
	errs = append(errs, validateOneOfEach("schema.decorators", s.Decorators, validDecorators)...)

	return errs
}

func validateHTTP(h *HTTPConfig) []error {
	var errs []error

	if h.Addr == "" {
		errs = append(errs, errors.New("http.addr: must not be empty"))
	}

	if h.BasePath != "" && !strings.HasPrefix(h.BasePath, "/") {
		errs = append(errs, fmt.Errorf("http.base_path: must start with /, got %q", h.BasePath))
	}

	if h.GzipLevel < minGzipLevel || h.GzipLevel > maxGzipLevel {
		errs = append(errs, fmt.Errorf("http.gzip_level: must be between %d and %d, got %d",
			minGzipLevel, maxGzipLevel, h.GzipLevel))
	}

	if h.RelationshipBatchSize < minBatchSize || h.RelationshipBatchSize > maxBatchSize {
		errs = append(errs, fmt.Errorf("http.relationship_batch_size: must be between %d and %d, got %d",
			minBatchSize, maxBatchSize, h.RelationshipBatchSize))
	}

	if n, err := ParseSize(h.MaxBodySize); err != nil {
		errs = append(errs, fmt.Errorf("http.max_body_size: %w", err))
	} else if n < minBodySize {
		errs = append(errs, fmt.Errorf("http.max_body_size: must be at least %d bytes, got %s",
			minBodySize, h.MaxBodySize))
	}

	if h.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("http.rate_limit: must be >= 0, got %g", h.RateLimit))
	}

	if h.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("http.rate_burst: must be >= 0, got %d", h.RateBurst))
	}

	errs = append(errs, validateDurationMin("http.shutdown_timeout", h.ShutdownTimeout, minShutdownTimeout)...)

	return errs
}

func validateSync(s *SyncConfig) []error {
	return validateDurationNonNeg("sync.restore_tolerance", s.RestoreTolerance)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if a.JWTSecret != "" && len(a.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("auth.jwt_secret: must be at least %d characters", minJWTSecretLength))
	}

	errs = append(errs, validateOneOf("auth.default_policy", a.DefaultPolicy, validPolicies)...)

	return errs
}

func validateBroadcasting(b *BroadcastingConfig) []error {
	var errs []error

	errs = append(errs, validateOneOf("broadcasting.mode", b.Mode, validModes)...)

	if b.Enabled && b.ViewerType == "" {
		errs = append(errs, errors.New("broadcasting.viewer_type: must not be empty when broadcasting is enabled"))
	}

	if b.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("broadcasting.queue_size: must be >= 0, got %d", b.QueueSize))
	}

	if b.SubscriberBuffer < minSubscriberBuffer {
		errs = append(errs, fmt.Errorf("broadcasting.subscriber_buffer: must be >= %d, got %d",
			minSubscriberBuffer, b.SubscriberBuffer))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateOneOf("logging.log_level", l.LogLevel, validLogLevels)...)
	errs = append(errs, validateOneOf("logging.log_format", l.LogFormat, validLogFormats)...)

	return errs
}

func validateOneOf(field, value string, valid []string) []error {
	if !slices.Contains(valid, value) {
		return []error{fmt.Errorf("%s: must be one of %s; got %q", field, strings.Join(valid, ", "), value)}
	}

	return nil
}

func validateOneOfEach(field string, values, valid []string) []error {
	var errs []error

	for _, v := range values {
		errs = append(errs, validateOneOf(field, v, valid)...)
	}

	return errs
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < minimum {
		return []error{fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)}
	}

	return nil
}

func validateDurationNonNeg(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("%s: must be >= 0, got %s", field, d)}
	}

	return nil
}

// ShutdownTimeoutDuration returns the parsed shutdown grace period. The value was
// checked by Validate.
func (h *HTTPConfig) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(h.ShutdownTimeout)
	if err != nil {
		return 0
	}

	return d
}

// MaxBodyBytes returns the parsed request body limit.
func (h *HTTPConfig) MaxBodyBytes() int64 {
	n, err := ParseSize(h.MaxBodySize)
	if err != nil {
		return 0
	}

	return n
}

// RestoreToleranceDuration returns the parsed cascade restore tolerance.
func (s *SyncConfig) RestoreToleranceDuration() time.Duration {
	d, err := time.ParseDuration(s.RestoreTolerance)
	if err != nil {
		return 0
	}

	return d
}
