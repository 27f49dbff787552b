package sync

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tonimelisma/schema-api/internal/store"
)

// persist applies the canonical operations in one transaction with log
// attached, so every write (explicit, hook-driven or cascaded) is recorded.
func (e *Engine) persist(ctx context.Context, ops []*Operation, log *OperationLog) error {
	err := e.store.WithTx(ctx, []store.Observer{log}, func(repo *store.Repo) error {
		for _, op := range ops {
			if err := e.apply(ctx, repo, op); err != nil {
				return &BatchError{Err: ErrStorageFailure, Type: op.Type, ID: op.ID, Cause: err}
			}
		}

		return nil
	})

	var be *BatchError
	if err != nil && !errors.As(err, &be) {
		return &BatchError{Err: ErrStorageFailure, Cause: err}
	}

	return err
}

func (e *Engine) apply(ctx context.Context, repo *store.Repo, op *Operation) error {
	if op.Kind == KindDelete {
		return repo.Delete(ctx, op.Record)
	}

	if op.restore {
		if err := repo.Restore(ctx, op.Record); err != nil {
			return err
		}
	}

	if ignored := op.Record.Fill(op.Attrs); len(ignored) > 0 {
		e.logger.Debug("ignoring non-fillable attributes",
			slog.String("type", op.Type),
			slog.String("id", op.ID),
			slog.Any("attributes", ignored),
		)
	}

	if op.Record.Exists() && !op.Record.IsDirty() {
		return nil
	}

	_, err := repo.Save(ctx, op.Record)

	return err
}
