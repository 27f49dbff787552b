package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tonimelisma/schema-api/internal/schema"
)

// Repo performs reads and writes inside one transaction. It is handed to
// WithTx callbacks and to hooks, and is not safe for concurrent use.
type Repo struct {
	store     *Store
	q         querier
	observers []Observer
	changes   []Change
	deleting  map[string]bool
	done      bool
}

func (r *Repo) check() error {
	if r.done {
		return ErrTransactionFinished
	}

	return nil
}

// Find loads one record by primary key.
func (r *Repo) Find(ctx context.Context, e *schema.Entity, id any, withTrashed bool) (*Record, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	return find(ctx, r.q, e, id, withTrashed)
}

// Select loads every record matching q.
func (r *Repo) Select(ctx context.Context, q Query) ([]*Record, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	return collect(ctx, r.q, q)
}

// Save inserts a new record or writes the dirty attributes of an existing
// one. It reports whether anything was written; an existing record with no
// changes is left alone and fires no events. After a write the record is
// reloaded so it reflects defaults and values set by hooks.
func (r *Repo) Save(ctx context.Context, rec *Record) (bool, error) {
	if err := r.check(); err != nil {
		return false, err
	}

	if !rec.exists {
		return true, r.insert(ctx, rec)
	}

	if !rec.IsDirty() {
		return false, nil
	}

	return r.update(ctx, rec)
}

func (r *Repo) insert(ctx context.Context, rec *Record) error {
	e := rec.entity

	if err := r.fire(ctx, Creating, rec); err != nil {
		return err
	}

	if e.Timestamps {
		now := FormatTime(r.store.Now())
		if rec.Get(schema.CreatedAtColumn) == nil {
			rec.Set(schema.CreatedAtColumn, now)
		}

		rec.Set(schema.UpdatedAtColumn, now)
	}

	cols, args, err := writable(rec, rec.attrs)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(e.Table), quoteAll(cols), placeholders(len(cols)))

	if _, err := r.q.ExecContext(ctx, text, args...); err != nil {
		return fmt.Errorf("store: inserting %s %s: %w", e.Type, rec.Key(), err)
	}

	if err := r.refresh(ctx, rec); err != nil {
		return err
	}

	return r.fire(ctx, Created, rec)
}

func (r *Repo) update(ctx context.Context, rec *Record) (bool, error) {
	e := rec.entity

	if err := r.fire(ctx, Updating, rec); err != nil {
		return false, err
	}

	dirty := rec.Dirty()
	if len(dirty) == 0 {
		return false, nil
	}

	if e.Timestamps {
		now := FormatTime(r.store.Now())
		rec.Set(schema.UpdatedAtColumn, now)
		dirty[schema.UpdatedAtColumn] = now
	}

	if err := r.writeColumns(ctx, rec, dirty); err != nil {
		return false, err
	}

	if err := r.refresh(ctx, rec); err != nil {
		return false, err
	}

	return true, r.fire(ctx, Updated, rec)
}

// Delete removes a record: soft-deletable entities get a deletion timestamp,
// everything else is deleted for good. A record whose deletion is already in
// progress in this transaction is skipped, which stops cascades from
// looping through cyclic relations.
func (r *Repo) Delete(ctx context.Context, rec *Record) error {
	if err := r.check(); err != nil {
		return err
	}

	e := rec.entity
	key := e.Type + "\x00" + rec.Key()

	if r.deleting[key] {
		return nil
	}

	r.deleting[key] = true
	defer delete(r.deleting, key)

	if err := r.fire(ctx, Deleting, rec); err != nil {
		return err
	}

	if e.SoftDeletes {
		now := FormatTime(r.store.Now())
		cols := map[string]any{schema.DeletedAtColumn: now}

		if e.Timestamps {
			cols[schema.UpdatedAtColumn] = now
		}

		for k, v := range cols {
			rec.Set(k, v)
		}

		if err := r.writeColumns(ctx, rec, cols); err != nil {
			return err
		}

		if err := r.refresh(ctx, rec); err != nil {
			return err
		}
	} else {
		text := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(e.Table), quote(e.PrimaryKey))

		if _, err := r.q.ExecContext(ctx, text, rec.ID()); err != nil {
			return fmt.Errorf("store: deleting %s %s: %w", e.Type, rec.Key(), err)
		}

		rec.original = make(map[string]any)
		rec.exists = false
	}

	return r.fire(ctx, Deleted, rec)
}

// Restore clears the deletion timestamp of a soft-deleted record.
func (r *Repo) Restore(ctx context.Context, rec *Record) error {
	if err := r.check(); err != nil {
		return err
	}

	e := rec.entity
	if !e.SoftDeletes {
		return fmt.Errorf("%w: %s", ErrNotSoftDeletable, e.Type)
	}

	if err := r.fire(ctx, Restoring, rec); err != nil {
		return err
	}

	cols := map[string]any{schema.DeletedAtColumn: nil}
	if e.Timestamps {
		cols[schema.UpdatedAtColumn] = FormatTime(r.store.Now())
	}

	for k, v := range cols {
		rec.Set(k, v)
	}

	if err := r.writeColumns(ctx, rec, cols); err != nil {
		return err
	}

	if err := r.refresh(ctx, rec); err != nil {
		return err
	}

	return r.fire(ctx, Restored, rec)
}

func (r *Repo) writeColumns(ctx context.Context, rec *Record, values map[string]any) error {
	e := rec.entity

	cols, args, err := writable(rec, values)
	if err != nil {
		return err
	}

	if len(cols) == 0 {
		return nil
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = quote(c) + " = ?"
	}

	// The key value comes from the last persisted state in case the
	// in-memory key was reassigned.
	id := rec.original[e.PrimaryKey]
	if id == nil {
		id = rec.ID()
	}

	text := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quote(e.Table), strings.Join(sets, ", "), quote(e.PrimaryKey))

	if _, err := r.q.ExecContext(ctx, text, append(args, id)...); err != nil {
		return fmt.Errorf("store: updating %s %s: %w", e.Type, rec.Key(), err)
	}

	return nil
}

// writable returns the sorted column names present on the table and their
// bound values.
func writable(rec *Record, values map[string]any) ([]string, []any, error) {
	cols := make([]string, 0, len(values))

	for k := range values {
		if rec.entity.HasColumn(k) {
			cols = append(cols, k)
		}
	}

	sort.Strings(cols)

	args := make([]any, len(cols))

	for i, c := range cols {
		v, err := toDB(values[c])
		if err != nil {
			return nil, nil, fmt.Errorf("store: %s.%s: %w", rec.entity.Type, c, err)
		}

		args[i] = v
	}

	return cols, args, nil
}

// refresh reloads the record's attributes from the database.
func (r *Repo) refresh(ctx context.Context, rec *Record) error {
	fresh, err := find(ctx, r.q, rec.entity, rec.ID(), true)
	if err != nil {
		return fmt.Errorf("store: refreshing %s %s: %w", rec.entity.Type, rec.Key(), err)
	}

	rec.attrs = fresh.attrs
	rec.syncOriginal()

	return nil
}

// fire runs the hooks for ev and, for completed events, records the change
// and tells the transaction's observers. Hooks run before observers, so an
// observer sees writes made by hooks first.
func (r *Repo) fire(ctx context.Context, ev Event, rec *Record) error {
	for _, h := range r.store.hooks.handlers(rec.entity.Type, ev) {
		if err := h(ctx, r, rec); err != nil {
			return fmt.Errorf("store: %s hook for %s %s: %w", ev, rec.entity.Type, rec.Key(), err)
		}
	}

	if !ev.completed() {
		return nil
	}

	ch := Change{Event: ev, Record: rec.Clone()}
	r.changes = append(r.changes, ch)

	for _, obs := range r.observers {
		obs.Observe(ctx, ch)
	}

	return nil
}
