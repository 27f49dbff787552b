package main

import (
	"fmt"
	"log/slog"
	"net"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/schema-api/internal/config"
)

var (
	flagAddr    string
	flagPIDFile string
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the HTTP API server until SIGINT or SIGTERM.

The config file is watched while the server runs; changes to the log level
and the default gzip level apply immediately. SIGHUP forces a reload.`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&flagPIDFile, "pid-file", "", "PID file path (default: in the data directory)")

	return cmd
}

func newReloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Ask a running server to reload its config file",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := sendSIGHUP(pidPath(resolvedCfg)); err != nil {
				return err
			}

			fmt.Println("Reload signal sent.")

			return nil
		},
	}

	cmd.Flags().StringVar(&flagPIDFile, "pid-file", "", "PID file path (default: in the data directory)")

	return cmd
}

func pidPath(cfg *config.Config) string {
	if flagPIDFile != "" {
		return flagPIDFile
	}

	return defaultPIDPath(config.DefaultDataDir(), cfg.Database.Path)
}

func runServe(cmd *cobra.Command, _ []string) error {
	out, closeLog, err := logOutput(resolvedCfg)
	if err != nil {
		return err
	}
	defer closeLog()

	logger, level := buildLogger(resolvedCfg, out)

	cleanup, err := writePIDFile(pidPath(resolvedCfg))
	if err != nil {
		return err
	}
	defer cleanup()

	holder := config.NewHolder(resolvedCfg, resolvedCfgPath)
	holder.SetOverrides(resolvedEnv, resolvedCLI)

	ctx := shutdownContext(cmd.Context(), logger)

	a, err := newApp(ctx, holder, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", resolvedCfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", resolvedCfg.HTTP.Addr, err)
	}

	onReload := func(prev, next *config.Config) {
		applyReload(prev, next, level, logger)
	}

	return a.serve(ctx, ln, holder, onReload, logger)
}

// applyReload applies the hot-reloadable settings of next. The gzip level is
// read through the holder on every request; the log level is set here.
// Other changes are reported as needing a restart.
func applyReload(prev, next *config.Config, level *slog.LevelVar, logger *slog.Logger) {
	level.Set(effectiveLevel(next))

	for _, key := range restartRequired(prev, next) {
		logger.Warn("config change needs a restart to take effect", slog.String("section", key))
	}
}

// restartRequired lists the sections whose changes a running server cannot
// apply.
func restartRequired(prev, next *config.Config) []string {
	var out []string

	if prev.Database != next.Database {
		out = append(out, "database")
	}

	if !reflect.DeepEqual(prev.Schema, next.Schema) {
		out = append(out, "schema")
	}

	ph, nh := prev.HTTP, next.HTTP
	ph.GzipLevel, nh.GzipLevel = 0, 0

	if !reflect.DeepEqual(ph, nh) {
		out = append(out, "http")
	}

	if prev.Sync != next.Sync {
		out = append(out, "sync")
	}

	if prev.Auth != next.Auth {
		out = append(out, "auth")
	}

	if prev.Broadcasting != next.Broadcasting {
		out = append(out, "broadcasting")
	}

	if prev.Logging.LogFormat != next.Logging.LogFormat || prev.Logging.LogFile != next.Logging.LogFile {
		out = append(out, "logging")
	}

	return out
}
