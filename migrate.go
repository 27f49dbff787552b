package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/schema-api/internal/store"
)

var flagMigrateStatus bool

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply the migrations in database.migrations_dir that have not run yet.
With --status, list every migration and whether it is applied instead.`,
		RunE: runMigrate,
	}

	cmd.Flags().BoolVar(&flagMigrateStatus, "status", false, "show migration status without applying")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	dir := resolvedCfg.Database.MigrationsDir
	if dir == "" {
		return errors.New("no migrations directory configured: set database.migrations_dir")
	}

	out, closeLog, err := logOutput(resolvedCfg)
	if err != nil {
		return err
	}
	defer closeLog()

	logger, _ := buildLogger(resolvedCfg, out)
	ctx := cmd.Context()

	st, err := store.Open(ctx, resolvedCfg.Database.Path, store.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer st.Close()

	fsys := os.DirFS(dir)

	if !flagMigrateStatus {
		n, err := st.Migrate(ctx, fsys)
		if err != nil {
			return err
		}

		statusf("Applied %d migration(s).\n", n)

		return nil
	}

	states, err := st.MigrationStatus(ctx, fsys)
	if err != nil {
		return err
	}

	if flagJSON {
		return printMigrationsJSON(states)
	}

	rows := make([][]string, len(states))
	for i, s := range states {
		rows[i] = []string{strconv.FormatInt(s.Version, 10), s.Source, yesNo(s.Applied)}
	}

	printTable(os.Stdout, []string{"VERSION", "SOURCE", "APPLIED"}, rows)

	return nil
}

type migrationJSON struct {
	Version int64  `json:"version"`
	Source  string `json:"source"`
	Applied bool   `json:"applied"`
}

func printMigrationsJSON(states []store.MigrationState) error {
	out := make([]migrationJSON, len(states))
	for i, s := range states {
		out[i] = migrationJSON(s)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding migration status: %w", err)
	}

	return nil
}
