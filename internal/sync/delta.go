package sync

import (
	"time"

	"github.com/tonimelisma/schema-api/internal/schema"
	"github.com/tonimelisma/schema-api/internal/store"
)

// DeltaQuery returns the list query for e. For a soft-deletable entity
// with a since time it selects, trashed rows included, every row deleted or
// updated at or after since. Otherwise it selects all live rows.
func DeltaQuery(e *schema.Entity, since *time.Time) store.Query {
	q := store.Query{Entity: e}

	if !deltaApplies(e, since) {
		return q
	}

	at := store.FormatTime(*since)

	changed := []store.Condition{
		{Column: schema.DeletedAtColumn, Op: store.OpGte, Values: []any{at}},
	}

	if e.HasColumn(schema.UpdatedAtColumn) {
		changed = append(changed, store.Condition{
			Column: schema.UpdatedAtColumn, Op: store.OpGte, Values: []any{at},
		})
	}

	q.WithTrashed = true
	q.Where = []store.Condition{{Any: changed}}

	return q
}

// Classify reports the kind a listed record is delivered as. Outside a
// delta read every row is a create. In a delta read trashed rows are
// deletes, rows created strictly after since are creates, and the rest are
// updates.
func Classify(e *schema.Entity, since *time.Time, rec *store.Record) Kind {
	if !deltaApplies(e, since) {
		return KindCreate
	}

	if rec.Trashed() {
		return KindDelete
	}

	if created, ok := rec.Time(schema.CreatedAtColumn); ok && created.After(*since) {
		return KindCreate
	}

	return KindUpdate
}

func deltaApplies(e *schema.Entity, since *time.Time) bool {
	return since != nil && e.SoftDeletes
}
