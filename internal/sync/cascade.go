package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/schema-api/internal/store"
)

// DefaultRestoreTolerance is the default window within which a child's
// deletion time must fall around its parent's for the child to be restored
// together with the parent.
const DefaultRestoreTolerance = time.Second

// CascadeEngine propagates deletes and restores along relations that are
// declared with cascade_delete.
type CascadeEngine struct {
	tolerance time.Duration
	logger    *slog.Logger
}

// NewCascadeEngine returns a cascade engine with the given restore
// tolerance. A non-positive tolerance means DefaultRestoreTolerance.
func NewCascadeEngine(tolerance time.Duration, logger *slog.Logger) *CascadeEngine {
	if tolerance <= 0 {
		tolerance = DefaultRestoreTolerance
	}

	return &CascadeEngine{tolerance: tolerance, logger: logger}
}

// Install registers the cascade as deleting and restoring hooks for every
// entity type.
func (c *CascadeEngine) Install(h *store.Hooks) {
	h.OnAny(store.Deleting, c.cascadeDelete)
	h.OnAny(store.Restoring, c.cascadeRestore)
}

// cascadeDelete deletes the live related records of every cascading
// relation. Records that cannot be soft-deleted are only removed when the
// relation says force_delete.
func (c *CascadeEngine) cascadeDelete(ctx context.Context, repo *store.Repo, rec *store.Record) error {
	e := rec.Entity()

	for _, rule := range e.CascadeRules() {
		rel, ok := e.Relation(rule.Relation)
		if !ok {
			continue
		}

		related, err := repo.Related(ctx, rec, rel, false)
		if err != nil {
			return fmt.Errorf("sync: cascading delete of %s %s: %w", e.Type, rec.Key(), err)
		}

		for _, child := range related {
			if !child.Entity().SoftDeletes && !rule.ForceDelete {
				continue
			}

			c.logger.Debug("cascading delete",
				slog.String("parent_type", e.Type),
				slog.String("parent_id", rec.Key()),
				slog.String("relation", rel.Name),
				slog.String("id", child.Key()),
			)

			if err := repo.Delete(ctx, child); err != nil {
				return err
			}
		}
	}

	return nil
}

// cascadeRestore restores trashed related records that were deleted
// together with rec. It must run before rec's deletion time is cleared.
func (c *CascadeEngine) cascadeRestore(ctx context.Context, repo *store.Repo, rec *store.Record) error {
	parentDeletedAt, ok := rec.DeletedAt()
	if !ok {
		return nil
	}

	e := rec.Entity()

	for _, rule := range e.CascadeRules() {
		rel, ok := e.Relation(rule.Relation)
		if !ok || !rel.Related().SoftDeletes {
			continue
		}

		related, err := repo.Related(ctx, rec, rel, true)
		if err != nil {
			return fmt.Errorf("sync: cascading restore of %s %s: %w", e.Type, rec.Key(), err)
		}

		for _, child := range related {
			if !c.shouldRestore(child, parentDeletedAt) {
				continue
			}

			c.logger.Debug("cascading restore",
				slog.String("parent_type", e.Type),
				slog.String("parent_id", rec.Key()),
				slog.String("relation", rel.Name),
				slog.String("id", child.Key()),
			)

			if err := repo.Restore(ctx, child); err != nil {
				return err
			}
		}
	}

	return nil
}

// shouldRestore reports whether child was trashed within the tolerance
// window around the parent's deletion. Children deleted independently
// earlier or later stay trashed.
func (c *CascadeEngine) shouldRestore(child *store.Record, parentDeletedAt time.Time) bool {
	deletedAt, ok := child.DeletedAt()
	if !ok {
		return false
	}

	diff := deletedAt.Sub(parentDeletedAt)
	if diff < 0 {
		diff = -diff
	}

	return diff <= c.tolerance
}
