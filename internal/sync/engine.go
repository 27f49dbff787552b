package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/internal/store"
)

// Authorizer decides whether the caller in ctx may perform ability on an
// entity. rec is nil for creates.
type Authorizer interface {
	Allows(ctx context.Context, ability string, e *schema.Entity, rec *store.Record) (bool, error)
}

// Validator checks the attributes of one operation and returns the failed
// rules per field. An empty result means valid.
type Validator interface {
	Validate(e *schema.Entity, ability string, attrs map[string]any) map[string][]string
}

// Notifier is told about the merged operations of every committed batch.
type Notifier interface {
	Notify(ctx context.Context, ops []*Operation)
}

// Recorder receives batch outcomes for metrics.
type Recorder interface {
	ObserveBatch(result string, ops []*Operation, elapsed time.Duration)
}

// EngineConfig holds the collaborators of an Engine. Notifier and Recorder
// are optional.
type EngineConfig struct {
	Directory  *schema.Directory
	Store      *store.Store
	Authorizer Authorizer
	Validator  Validator
	Notifier   Notifier
	Recorder   Recorder
	Logger     *slog.Logger
}

// Engine runs mutation batches.
type Engine struct {
	dir       *schema.Directory
	store     *store.Store
	auth      Authorizer
	validator Validator
	notifier  Notifier
	recorder  Recorder
	logger    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg *EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		dir:       cfg.Directory,
		store:     cfg.Store,
		auth:      cfg.Authorizer,
		validator: cfg.Validator,
		notifier:  cfg.Notifier,
		recorder:  cfg.Recorder,
		logger:    logger,
	}
}

// Sync applies a batch of raw mutations atomically and returns every
// resulting operation: the canonical operations of the batch, in order of
// first appearance, followed by side effects of hooks and cascades.
//
// Authorization fails fast on the first denied operation. Validation runs
// for every operation before anything is written and reports all failures
// in a *ValidationError. Nothing is persisted unless every step succeeds.
func (e *Engine) Sync(ctx context.Context, events []RawEvent) ([]*Operation, error) {
	start := time.Now()

	ops, err := e.sync(ctx, events)

	result := ErrorKind(err)

	if e.recorder != nil {
		e.recorder.ObserveBatch(result, ops, time.Since(start))
	}

	if err != nil {
		e.logger.Info("sync batch rejected",
			slog.Int("events", len(events)),
			slog.String("result", result),
			slog.String("error", err.Error()),
		)

		return nil, err
	}

	e.logger.Debug("sync batch applied",
		slog.Int("events", len(events)),
		slog.Int("operations", len(ops)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return ops, nil
}

func (e *Engine) sync(ctx context.Context, events []RawEvent) ([]*Operation, error) {
	ops, err := Reduce(events)
	if err != nil {
		return nil, err
	}

	if err := e.materialize(ctx, ops); err != nil {
		return nil, err
	}

	if err := e.authorize(ctx, ops); err != nil {
		return nil, err
	}

	if err := e.validate(ops); err != nil {
		return nil, err
	}

	log := NewOperationLog()

	if err := e.persist(ctx, ops, log); err != nil {
		return nil, err
	}

	merged := MergeExtras(ops, log.Entries())

	if e.notifier != nil {
		e.notifier.Notify(ctx, merged)
	}

	return merged, nil
}

// materialize resolves each operation's entity and attaches its record: a
// new record for creates (or the trashed row a create revives), the live
// row for updates and deletes.
func (e *Engine) materialize(ctx context.Context, ops []*Operation) error {
	resolved := make(map[string]*schema.Entity)

	for _, op := range ops {
		ent, ok := resolved[op.Type]
		if !ok {
			var err error

			ent, err = e.dir.Resolve(op.Type)
			if err != nil {
				return &BatchError{Err: ErrUnknownEntityType, Type: op.Type, ID: op.ID, Cause: err}
			}

			if ent.APIIgnore {
				return &BatchError{Err: ErrUnknownEntityType, Type: op.Type, ID: op.ID}
			}

			resolved[op.Type] = ent
		}

		op.Entity = ent

		if op.Kind == KindCreate {
			rec, restore, err := e.newRecord(ctx, ent, op.ID)
			if err != nil {
				return &BatchError{Err: ErrStorageFailure, Type: op.Type, ID: op.ID, Cause: err}
			}

			op.Record, op.restore = rec, restore

			continue
		}

		rec, err := e.store.Find(ctx, ent, op.ID, false)
		if errors.Is(err, store.ErrNotFound) {
			return &BatchError{Err: ErrEntityNotFound, Type: op.Type, ID: op.ID}
		}

		if err != nil {
			return &BatchError{Err: ErrStorageFailure, Type: op.Type, ID: op.ID, Cause: err}
		}

		op.Record = rec
	}

	return nil
}

func (e *Engine) newRecord(ctx context.Context, ent *schema.Entity, id string) (*store.Record, bool, error) {
	if ent.SoftDeletes {
		existing, err := e.store.Find(ctx, ent, id, true)

		switch {
		case err == nil && existing.Trashed():
			return existing, true, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, false, err
		}
	}

	rec := store.NewRecord(ent)
	rec.Set(ent.PrimaryKey, id)

	return rec, false, nil
}

func (e *Engine) authorize(ctx context.Context, ops []*Operation) error {
	for _, op := range ops {
		subject := op.Record
		if op.Kind == KindCreate && !op.restore {
			subject = nil
		}

		allowed, err := e.auth.Allows(ctx, op.Kind.Ability(), op.Entity, subject)
		if err != nil {
			return &BatchError{Err: ErrForbidden, Type: op.Type, ID: op.ID, Cause: err}
		}

		if !allowed {
			return &BatchError{Err: ErrForbidden, Type: op.Type, ID: op.ID}
		}
	}

	return nil
}

func (e *Engine) validate(ops []*Operation) error {
	var entries []ValidationEntry

	for _, op := range ops {
		failed := e.validator.Validate(op.Entity, op.Kind.Ability(), op.Attrs)
		if len(failed) > 0 {
			entries = append(entries, ValidationEntry{ID: op.ID, Type: op.Type, Errors: failed})
		}
	}

	if len(entries) > 0 {
		return &ValidationError{Entries: entries}
	}

	return nil
}
