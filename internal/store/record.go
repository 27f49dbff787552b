package store

import (
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/tonimelisma/schema-api/internal/schema"
)

// Record is one row of an entity table. It tracks the values last read from
// or written to the database so that unchanged records are never rewritten.
type Record struct {
	entity   *schema.Entity
	attrs    map[string]any
	original map[string]any
	exists   bool
}

// NewRecord returns an unsaved record for the entity.
func NewRecord(e *schema.Entity) *Record {
	return &Record{
		entity:   e,
		attrs:    make(map[string]any),
		original: make(map[string]any),
	}
}

// Entity returns the record's entity.
func (r *Record) Entity() *schema.Entity {
	return r.entity
}

// ID returns the primary key value.
func (r *Record) ID() any {
	return r.attrs[r.entity.PrimaryKey]
}

// Key returns the primary key rendered as a string.
func (r *Record) Key() string {
	id := r.ID()
	if id == nil {
		return ""
	}

	return fmt.Sprint(id)
}

// Exists reports whether the record has been persisted.
func (r *Record) Exists() bool {
	return r.exists
}

// Get returns an attribute value, nil when unset.
func (r *Record) Get(column string) any {
	return r.attrs[column]
}

// Set assigns an attribute without any fillable check.
func (r *Record) Set(column string, value any) {
	r.attrs[column] = value
}

// Fill assigns the fillable attributes and returns the names of the ones
// that were ignored, sorted.
func (r *Record) Fill(attrs map[string]any) []string {
	var ignored []string

	for k, v := range attrs {
		if !r.entity.IsFillable(k) {
			ignored = append(ignored, k)
			continue
		}

		r.attrs[k] = v
	}

	sort.Strings(ignored)

	return ignored
}

// Attributes returns a copy of all attribute values.
func (r *Record) Attributes() map[string]any {
	return maps.Clone(r.attrs)
}

// Dirty returns the attributes that differ from the last persisted state.
// For a record that was never saved every attribute is dirty.
func (r *Record) Dirty() map[string]any {
	dirty := make(map[string]any)

	for k, v := range r.attrs {
		orig, ok := r.original[k]
		if !r.exists || !ok || !Equivalent(orig, v) {
			dirty[k] = v
		}
	}

	return dirty
}

// IsDirty reports whether any attribute changed since the last save.
func (r *Record) IsDirty() bool {
	return len(r.Dirty()) > 0
}

// Time returns a timestamp attribute.
func (r *Record) Time(column string) (time.Time, bool) {
	switch v := r.attrs[column].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := ParseTime(v)
		return t, err == nil
	}

	return time.Time{}, false
}

// DeletedAt returns the soft-delete timestamp when the record is trashed.
func (r *Record) DeletedAt() (time.Time, bool) {
	if !r.entity.SoftDeletes {
		return time.Time{}, false
	}

	return r.Time(schema.DeletedAtColumn)
}

// Trashed reports whether the record is soft-deleted.
func (r *Record) Trashed() bool {
	return r.entity.SoftDeletes && r.attrs[schema.DeletedAtColumn] != nil
}

// Clone returns an independent copy. Structured attribute values are shared.
func (r *Record) Clone() *Record {
	return &Record{
		entity:   r.entity,
		attrs:    maps.Clone(r.attrs),
		original: maps.Clone(r.original),
		exists:   r.exists,
	}
}

// syncOriginal marks the current attributes as persisted.
func (r *Record) syncOriginal() {
	r.original = maps.Clone(r.attrs)
	r.exists = true
}
