package store

import (
	"context"
	"fmt"

	"github.com/tonimelisma/schema-api/internal/schema"
)

// relatedQuery selects the records of rel's related entity linked to any of
// the given local key values (see schema.Relation.LocalKey).
func relatedQuery(rel *schema.Relation, keys []any, withTrashed bool, limit int) (string, []any, error) {
	related := rel.Related()

	var live []any

	for _, k := range keys {
		if k != nil {
			live = append(live, k)
		}
	}

	args, err := bindAll(live)
	if err != nil {
		return "", nil, err
	}

	in := "IN (" + placeholders(len(args)) + ")"
	if len(args) == 0 {
		in = "IN (NULL)"
	}

	var where string

	switch rel.Kind {
	case schema.HasOne, schema.HasMany:
		where = quote(rel.ForeignKey) + " " + in
	case schema.BelongsTo:
		where = quote(rel.OwnerKey) + " " + in
	case schema.BelongsToMany:
		where = fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s %s)",
			quote(related.PrimaryKey), quote(rel.RelatedPivotKey), quote(rel.PivotTable),
			quote(rel.ForeignPivotKey), in)
	default:
		return "", nil, fmt.Errorf("%w: relation kind %q", ErrInvalidQuery, rel.Kind)
	}

	if related.SoftDeletes && !withTrashed {
		where += " AND " + quote(schema.DeletedAtColumn) + " IS NULL"
	}

	text := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		quoteAll(related.ColumnNames()), quote(related.Table), where, quote(related.PrimaryKey))

	if limit > 0 {
		text += fmt.Sprintf(" LIMIT %d", limit)
	}

	return text, args, nil
}

// SelectRelated returns a cursor over the related records of every owner
// whose local key value is listed. Callers chunk large key lists.
func (s *Store) SelectRelated(ctx context.Context, rel *schema.Relation, keys []any, withTrashed bool) (*Cursor, error) {
	text, args, err := relatedQuery(rel, keys, withTrashed, 0)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("store: querying %s.%s: %w", rel.Type, rel.Name, err)
	}

	return &Cursor{rows: rows, entity: rel.Related()}, nil
}

// Related loads the records linked to rec through rel.
func (r *Repo) Related(ctx context.Context, rec *Record, rel *schema.Relation, withTrashed bool) ([]*Record, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	key := rec.Get(rel.LocalKey())
	if key == nil {
		return nil, nil
	}

	limit := 0
	if rel.Kind == schema.HasOne {
		limit = 1
	}

	text, args, err := relatedQuery(rel, []any{key}, withTrashed, limit)
	if err != nil {
		return nil, err
	}

	rows, err := r.q.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("store: querying %s of %s %s: %w", rel.Name, rec.Entity().Type, rec.Key(), err)
	}

	cur := &Cursor{rows: rows, entity: rel.Related()}
	defer cur.Close()

	var out []*Record
	for cur.Next() {
		out = append(out, cur.Record())
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("store: reading %s of %s %s: %w", rel.Name, rec.Entity().Type, rec.Key(), err)
	}

	return out, nil
}
