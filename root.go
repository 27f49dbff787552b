package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/schema-api/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagDatabase   string
	flagLogLevel   string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE,
// and resolvedCfgPath the file it came from. Both are available to all
// subcommands after the root pre-run phase completes.
var (
	resolvedCfg     *config.Config
	resolvedCfgPath string
	resolvedEnv     config.EnvOverrides
	resolvedCLI     config.CLIOverrides
)

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schema-api",
		Short:   "Change-synchronization API over SQLite",
		Long:    "Serves batched entity mutations, delta reads and change broadcasts for an SQLite database described by a schema file.",
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagDatabase, "db", "", "database path (overrides config)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "only log errors")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReloadCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSchemaCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer override
// chain and stores the result for use by subcommands.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
	}

	// Only pass flags to the resolver if the user explicitly set them.
	if cmd.Flags().Changed("db") {
		cli.Database = &flagDatabase
	}

	if cmd.Flags().Changed("log-level") {
		cli.LogLevel = &flagLogLevel
	}

	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		addr := f.Value.String()
		cli.Addr = &addr
	}

	env := config.ReadEnvOverrides()

	cfg, path, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg
	resolvedCfgPath = path
	resolvedEnv = env
	resolvedCLI = cli

	return nil
}

// parseLevel maps a validated config log level to its slog level.
func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// effectiveLevel returns the config log level unless --verbose or --quiet
// override it. CLI flags always win.
func effectiveLevel(cfg *config.Config) slog.Level {
	switch {
	case flagVerbose:
		return slog.LevelDebug
	case flagQuiet:
		return slog.LevelError
	case cfg != nil:
		return parseLevel(cfg.Logging.LogLevel)
	default:
		return slog.LevelInfo
	}
}

// buildLogger creates an slog.Logger writing to w. The returned LevelVar
// lets a config reload change the level of a running server. Format "auto"
// picks text for terminals and JSON otherwise.
func buildLogger(cfg *config.Config, w io.Writer) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(effectiveLevel(cfg))

	format := "auto"
	if cfg != nil {
		format = cfg.Logging.LogFormat
	}

	if format == "auto" {
		format = "json"

		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "text"
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), level
	}

	return slog.New(slog.NewJSONHandler(w, opts)), level
}

// logOutput returns the configured log file, or stderr. The returned close
// function is never nil.
func logOutput(cfg *config.Config) (io.Writer, func(), error) {
	if cfg == nil || cfg.Logging.LogFile == "" {
		return os.Stderr, func() {}, nil
	}

	f, err := os.OpenFile(cfg.Logging.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	return f, func() { f.Close() }, nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
