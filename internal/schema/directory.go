package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
)

// Tables that are never exposed, even with autodiscovery.
var internalTables = map[string]bool{
	"goose_db_version": true,
}

// Introspector reports the tables and columns of the backing database.
// Implemented by the store.
type Introspector interface {
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]Column, error)
}

// Options controls how a Directory is assembled.
type Options struct {
	// Autodiscover exposes tables that the schema file does not declare,
	// using conventional defaults.
	Autodiscover bool
	Resolvers    []string
	Decorators   []string
	Logger       *slog.Logger
}

// Directory is the process-wide set of entity types.
type Directory struct {
	entities []*Entity
	byType   map[string]*Entity
	byTable  map[string]*Entity
	resolver Resolver
}

// Build assembles a Directory from a schema file and the live database.
func Build(ctx context.Context, f *File, in Introspector, opts Options) (*Directory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tables, err := in.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema: listing tables: %w", err)
	}

	d := &Directory{
		byType:  make(map[string]*Entity),
		byTable: make(map[string]*Entity),
	}

	types := make([]string, 0, len(f.Entities))
	for typ := range f.Entities {
		types = append(types, typ)
	}

	sort.Strings(types)

	var errs []error

	for _, typ := range types {
		def := f.Entities[typ]

		table := def.Table
		if table == "" {
			table = TypeToTable(typ)
		}

		if !slices.Contains(tables, table) {
			errs = append(errs, fmt.Errorf("schema: table %q for type %q does not exist", table, typ))
			continue
		}

		ent, err := buildEntity(ctx, in, typ, table, def)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		d.add(ent)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if opts.Autodiscover {
		if err := d.discover(ctx, in, tables, logger); err != nil {
			return nil, err
		}
	}

	if err := d.bindRelations(ctx, in, types, f); err != nil {
		return nil, err
	}

	sort.Slice(d.entities, func(i, j int) bool {
		return d.entities[i].Type < d.entities[j].Type
	})

	d.resolver, err = composeResolver(opts.Resolvers, opts.Decorators, d.byType, d.byTable, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("entity directory built", slog.Int("entities", len(d.entities)))

	return d, nil
}

// Resolve maps a type name to its entity through the resolver chain.
func (d *Directory) Resolve(name string) (*Entity, error) {
	return d.resolver.Resolve(name)
}

// Entities returns every entity, sorted by type name.
func (d *Directory) Entities() []*Entity {
	return slices.Clone(d.entities)
}

// Listed returns the entities visible through the API, sorted by type name.
func (d *Directory) Listed() []*Entity {
	var out []*Entity

	for _, e := range d.entities {
		if !e.APIIgnore {
			out = append(out, e)
		}
	}

	return out
}

// ByTable returns the entity backed by the given table.
func (d *Directory) ByTable(table string) (*Entity, bool) {
	e, ok := d.byTable[table]
	return e, ok
}

func (d *Directory) add(e *Entity) {
	d.entities = append(d.entities, e)
	d.byType[e.Type] = e
	d.byTable[e.Table] = e
}

func (d *Directory) discover(ctx context.Context, in Introspector, tables []string, logger *slog.Logger) error {
	for _, table := range tables {
		if internalTables[table] || d.byTable[table] != nil {
			continue
		}

		typ := TableToType(table)
		if typ == "" || d.byType[typ] != nil {
			logger.Warn("skipping undeclared table: type name collides",
				slog.String("table", table),
				slog.String("type", typ),
			)

			continue
		}

		ent, err := buildEntity(ctx, in, typ, table, EntityDef{})
		if err != nil {
			return err
		}

		if !ent.HasColumn(ent.PrimaryKey) {
			logger.Debug("skipping undeclared table without a single-column primary key",
				slog.String("table", table),
			)

			continue
		}

		d.add(ent)

		logger.Debug("discovered entity",
			slog.String("type", typ),
			slog.String("table", table),
		)
	}

	return nil
}

func buildEntity(ctx context.Context, in Introspector, typ, table string, def EntityDef) (*Entity, error) {
	cols, err := in.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("schema: columns of %q: %w", table, err)
	}

	e := &Entity{
		Type:             typ,
		Table:            table,
		PrimaryKey:       def.PrimaryKey,
		Fillable:         def.Fillable,
		Guarded:          def.Guarded,
		APIIgnore:        def.APIIgnore,
		BroadcastIgnored: def.BroadcastIgnored,
		Hidden:           def.Hidden,
		Modifiers:        def.Modifiers,
		Filterable:       def.Filterable,
		Sortable:         def.Sortable,
		Rules:            def.Rules,
		Policy:           def.Policy,
		Columns:          cols,
	}
	e.indexColumns()

	if e.PrimaryKey == "" {
		e.PrimaryKey = primaryKeyOf(cols)
	}

	if def.SoftDeletes != nil {
		e.SoftDeletes = *def.SoftDeletes
	} else {
		e.SoftDeletes = e.HasColumn(DeletedAtColumn)
	}

	if def.Timestamps != nil {
		e.Timestamps = *def.Timestamps
	} else {
		e.Timestamps = e.HasColumn(CreatedAtColumn) && e.HasColumn(UpdatedAtColumn)
	}

	var errs []error

	if e.SoftDeletes && !e.HasColumn(DeletedAtColumn) {
		errs = append(errs, fmt.Errorf("schema: %s: soft_deletes needs a %s column", typ, DeletedAtColumn))
	}

	if e.Timestamps && (!e.HasColumn(CreatedAtColumn) || !e.HasColumn(UpdatedAtColumn)) {
		errs = append(errs, fmt.Errorf("schema: %s: timestamps need %s and %s columns",
			typ, CreatedAtColumn, UpdatedAtColumn))
	}

	lists := map[string][]string{
		"fillable":   e.Fillable,
		"guarded":    e.Guarded,
		"hidden":     e.Hidden,
		"filterable": e.Filterable,
		"sortable":   e.Sortable,
	}

	for _, list := range []string{"fillable", "guarded", "hidden", "filterable", "sortable"} {
		for _, col := range lists[list] {
			if !e.HasColumn(col) {
				errs = append(errs, fmt.Errorf("schema: %s: %s column %q does not exist", typ, list, col))
			}
		}
	}

	return e, errors.Join(errs...)
}

// primaryKeyOf returns the single primary key column, or "id" by convention
// when the table has none or a composite one.
func primaryKeyOf(cols []Column) string {
	var pks []string

	for _, c := range cols {
		if c.PrimaryKey {
			pks = append(pks, c.Name)
		}
	}

	if len(pks) == 1 {
		return pks[0]
	}

	return "id"
}

func (d *Directory) bindRelations(ctx context.Context, in Introspector, types []string, f *File) error {
	var errs []error

	for _, typ := range types {
		parent, ok := d.byType[typ]
		if !ok {
			continue
		}

		for _, def := range f.Entities[typ].Relations {
			rel, err := d.bindRelation(ctx, in, parent, def)
			if err != nil {
				errs = append(errs, err)
				continue
			}

			parent.Relations = append(parent.Relations, rel)
		}
	}

	return errors.Join(errs...)
}

func (d *Directory) bindRelation(ctx context.Context, in Introspector, parent *Entity, def RelationDef) (*Relation, error) {
	related, ok := d.byType[def.Type]
	if !ok {
		related, ok = d.byTable[TypeToTable(def.Type)]
	}

	if !ok {
		return nil, fmt.Errorf("schema: %s.%s: related type %q is not declared", parent.Type, def.Name, def.Type)
	}

	rel := &Relation{
		Name:            def.Name,
		Kind:            RelationKind(def.Kind),
		Type:            related.Type,
		ForeignKey:      def.ForeignKey,
		OwnerKey:        def.OwnerKey,
		PivotTable:      def.PivotTable,
		ForeignPivotKey: def.ForeignPivotKey,
		RelatedPivotKey: def.RelatedPivotKey,
		Include:         def.Include,
		CascadeDelete:   def.CascadeDelete,
		ForceDelete:     def.ForceDelete,
		parent:          parent,
		related:         related,
	}

	where := parent.Type + "." + rel.Name

	switch rel.Kind {
	case HasOne, HasMany:
		if rel.ForeignKey == "" {
			rel.ForeignKey = singular(parent.Table) + "_id"
		}

		if rel.OwnerKey == "" {
			rel.OwnerKey = parent.PrimaryKey
		}

		return rel, errors.Join(
			requireColumn(where, related, rel.ForeignKey),
			requireColumn(where, parent, rel.OwnerKey),
		)
	case BelongsTo:
		if rel.ForeignKey == "" {
			rel.ForeignKey = rel.Name + "_id"
		}

		if rel.OwnerKey == "" {
			rel.OwnerKey = related.PrimaryKey
		}

		return rel, errors.Join(
			requireColumn(where, parent, rel.ForeignKey),
			requireColumn(where, related, rel.OwnerKey),
		)
	case BelongsToMany:
		if rel.ForeignPivotKey == "" {
			rel.ForeignPivotKey = singular(parent.Table) + "_id"
		}

		if rel.RelatedPivotKey == "" {
			rel.RelatedPivotKey = singular(related.Table) + "_id"
		}

		cols, err := in.Columns(ctx, rel.PivotTable)
		if err != nil {
			return nil, fmt.Errorf("schema: %s: pivot columns: %w", where, err)
		}

		pivot := &Entity{Table: rel.PivotTable, Columns: cols}
		pivot.indexColumns()

		return rel, errors.Join(
			requireColumn(where, pivot, rel.ForeignPivotKey),
			requireColumn(where, pivot, rel.RelatedPivotKey),
		)
	}

	return nil, fmt.Errorf("schema: %s: unknown relation kind %q", where, rel.Kind)
}

func requireColumn(where string, e *Entity, col string) error {
	if e.HasColumn(col) {
		return nil
	}

	return fmt.Errorf("schema: %s: column %q does not exist on %q", where, col, e.Table)
}
