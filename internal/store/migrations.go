package store

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// MigrationState is one migration's status.
type MigrationState struct {
	Version int64
	Source  string
	Applied bool
}

func (s *Store) migrationProvider(fsys fs.FS) (*goose.Provider, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return nil, fmt.Errorf("store: creating migration provider: %w", err)
	}

	return provider, nil
}

// Migrate applies all pending migrations found at the root of fsys.
// Uses the goose v3 Provider API (no global state, context-aware).
func (s *Store) Migrate(ctx context.Context, fsys fs.FS) (int, error) {
	provider, err := s.migrationProvider(fsys)
	if err != nil {
		return 0, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: running migrations: %w", err)
	}

	for _, r := range results {
		s.logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return len(results), nil
}

// MigrationStatus reports every migration in fsys and whether it is applied.
func (s *Store) MigrationStatus(ctx context.Context, fsys fs.FS) ([]MigrationState, error) {
	provider, err := s.migrationProvider(fsys)
	if err != nil {
		return nil, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: reading migration status: %w", err)
	}

	out := make([]MigrationState, len(statuses))
	for i, st := range statuses {
		out[i] = MigrationState{
			Version: st.Source.Version,
			Source:  st.Source.Path,
			Applied: st.State == goose.StateApplied,
		}
	}

	return out, nil
}
