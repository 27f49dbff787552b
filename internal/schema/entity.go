// Package schema describes the entity types exposed by the API: which table
// backs each type, its columns, relations, cascade rules, validation rules
// and access policy. A Directory is built once at startup from a schema file
// plus column introspection and is read-only afterwards.
package schema

import "slices"

// Conventional timestamp column names.
const (
	CreatedAtColumn = "created_at"
	UpdatedAtColumn = "updated_at"
	DeletedAtColumn = "deleted_at"
)

// Query modifiers an entity may opt into.
const (
	ModifierFilter = "filter"
	ModifierSort   = "sort"
	ModifierLatest = "latest"
)

// RelationKind identifies how two entity types are linked.
type RelationKind string

// Supported relation kinds.
const (
	HasOne        RelationKind = "has_one"
	HasMany       RelationKind = "has_many"
	BelongsTo     RelationKind = "belongs_to"
	BelongsToMany RelationKind = "belongs_to_many"
)

// Column is one introspected table column.
type Column struct {
	Name       string
	Type       string // declared type, lower-cased, e.g. "varchar(255)"
	Nullable   bool
	PrimaryKey bool
	HasDefault bool
}

// CascadeRule says whether deleting an entity propagates along a relation
// and whether related records that cannot be soft-deleted are removed for
// good.
type CascadeRule struct {
	Relation        string
	CascadeOnDelete bool
	ForceDelete     bool
}

// Relation links an entity to another entity type.
//
// Key semantics follow the usual conventions:
//   - has_one / has_many: ForeignKey lives on the related table and points at
//     OwnerKey on this table.
//   - belongs_to: ForeignKey lives on this table and points at OwnerKey on the
//     related table.
//   - belongs_to_many: PivotTable joins ForeignPivotKey (this side) with
//     RelatedPivotKey (related side); both point at primary keys.
type Relation struct {
	Name            string
	Kind            RelationKind
	Type            string
	ForeignKey      string
	OwnerKey        string
	PivotTable      string
	ForeignPivotKey string
	RelatedPivotKey string
	Include         bool
	CascadeDelete   bool
	ForceDelete     bool

	parent  *Entity
	related *Entity
}

// Related returns the entity on the other side of the relation.
func (r *Relation) Related() *Entity {
	return r.related
}

// LocalKey returns the column on the owning entity whose values select the
// related records.
func (r *Relation) LocalKey() string {
	switch r.Kind {
	case HasOne, HasMany:
		return r.OwnerKey
	case BelongsTo:
		return r.ForeignKey
	}

	return r.parent.PrimaryKey
}

// Entity is the static description of one API type.
type Entity struct {
	Type             string
	Table            string
	PrimaryKey       string
	SoftDeletes      bool
	Timestamps       bool
	Fillable         []string
	Guarded          []string
	APIIgnore        bool
	BroadcastIgnored bool
	Hidden           []string
	Modifiers        []string
	Filterable       []string
	Sortable         []string

	// Rules maps an ability ("create", "update", "delete") to field rule
	// strings such as "required|string|max:255". Nil means the rules are
	// derived from the columns.
	Rules map[string]map[string]string

	// Policy maps an ability ("view", "list", "create", "update", "delete")
	// to an access rule. Missing abilities fall back to the default policy.
	Policy map[string]string

	Relations []*Relation
	Columns   []Column

	columnIndex map[string]int
}

// Column returns the named column.
func (e *Entity) Column(name string) (Column, bool) {
	i, ok := e.columnIndex[name]
	if !ok {
		return Column{}, false
	}

	return e.Columns[i], true
}

// HasColumn reports whether the backing table has the named column.
func (e *Entity) HasColumn(name string) bool {
	_, ok := e.columnIndex[name]
	return ok
}

// ColumnNames returns the column names in table order.
func (e *Entity) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}

	return names
}

// Managed reports whether the column is maintained by the store itself
// (timestamps and the soft-delete marker) and so never client-writable.
func (e *Entity) Managed(column string) bool {
	switch column {
	case CreatedAtColumn, UpdatedAtColumn:
		return e.Timestamps
	case DeletedAtColumn:
		return e.SoftDeletes
	}

	return false
}

// IsFillable reports whether a client may write the column.
func (e *Entity) IsFillable(column string) bool {
	if column == e.PrimaryKey || e.Managed(column) || !e.HasColumn(column) {
		return false
	}

	if len(e.Fillable) > 0 {
		return slices.Contains(e.Fillable, column)
	}

	return !slices.Contains(e.Guarded, column)
}

// IsHidden reports whether the column is left out of rendered output.
func (e *Entity) IsHidden(column string) bool {
	return slices.Contains(e.Hidden, column)
}

// HasModifier reports whether the entity opted into a query modifier.
func (e *Entity) HasModifier(name string) bool {
	return slices.Contains(e.Modifiers, name)
}

// Relation returns the named relation.
func (e *Entity) Relation(name string) (*Relation, bool) {
	for _, r := range e.Relations {
		if r.Name == name {
			return r, true
		}
	}

	return nil, false
}

// IncludedRelations returns the relations expanded by single-entity reads.
func (e *Entity) IncludedRelations() []*Relation {
	var out []*Relation

	for _, r := range e.Relations {
		if r.Include {
			out = append(out, r)
		}
	}

	return out
}

// CascadeRules returns one rule per relation that cascades on delete.
func (e *Entity) CascadeRules() []CascadeRule {
	var out []CascadeRule

	for _, r := range e.Relations {
		if r.CascadeDelete {
			out = append(out, CascadeRule{
				Relation:        r.Name,
				CascadeOnDelete: true,
				ForceDelete:     r.ForceDelete,
			})
		}
	}

	return out
}

func (e *Entity) indexColumns() {
	e.columnIndex = make(map[string]int, len(e.Columns))
	for i, c := range e.Columns {
		e.columnIndex[c.Name] = i
	}
}
