package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tonimelisma/schema-api/internal/schema"
)

// Condition operators.
const (
	OpEq     = "="
	OpGt     = ">"
	OpGte    = ">="
	OpLt     = "<"
	OpLte    = "<="
	OpIn     = "in"
	OpIsNull = "null"
)

// Condition is one WHERE predicate. A condition with Any set is an OR group
// of its members and ignores the other fields.
type Condition struct {
	Column string
	Op     string
	Values []any
	Any    []Condition
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// Query selects records of one entity. Conditions are ANDed. Soft-deleted
// rows are excluded unless WithTrashed is set. Without an explicit order
// rows come back by primary key.
type Query struct {
	Entity      *schema.Entity
	WithTrashed bool
	Where       []Condition
	OrderBy     []Order
	Limit       int
}

func (q Query) build() (string, []any, error) {
	e := q.Entity
	if e == nil {
		return "", nil, fmt.Errorf("%w: no entity", ErrInvalidQuery)
	}

	var (
		where []string
		args  []any
	)

	if e.SoftDeletes && !q.WithTrashed {
		where = append(where, quote(schema.DeletedAtColumn)+" IS NULL")
	}

	for _, c := range q.Where {
		sqlText, cargs, err := c.build(e)
		if err != nil {
			return "", nil, err
		}

		where = append(where, sqlText)
		args = append(args, cargs...)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "SELECT %s FROM %s", quoteAll(e.ColumnNames()), quote(e.Table))

	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	order := q.OrderBy
	if len(order) == 0 {
		order = []Order{{Column: e.PrimaryKey}}
	}

	terms := make([]string, 0, len(order))

	for _, o := range order {
		if !e.HasColumn(o.Column) {
			return "", nil, fmt.Errorf("%w: unknown sort column %q on %s", ErrInvalidQuery, o.Column, e.Type)
		}

		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}

		terms = append(terms, quote(o.Column)+" "+dir)
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(terms, ", "))

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	return b.String(), args, nil
}

func (c Condition) build(e *schema.Entity) (string, []any, error) {
	if len(c.Any) > 0 {
		parts := make([]string, 0, len(c.Any))

		var args []any

		for _, sub := range c.Any {
			s, a, err := sub.build(e)
			if err != nil {
				return "", nil, err
			}

			parts = append(parts, s)
			args = append(args, a...)
		}

		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	}

	if !e.HasColumn(c.Column) {
		return "", nil, fmt.Errorf("%w: unknown column %q on %s", ErrInvalidQuery, c.Column, e.Type)
	}

	col := quote(c.Column)

	switch c.Op {
	case OpIsNull:
		return col + " IS NULL", nil, nil
	case OpIn:
		if len(c.Values) == 0 {
			return "1 = 0", nil, nil
		}

		args, err := bindAll(c.Values)
		if err != nil {
			return "", nil, err
		}

		return col + " IN (" + placeholders(len(args)) + ")", args, nil
	case OpEq, OpGt, OpGte, OpLt, OpLte:
		if len(c.Values) != 1 {
			return "", nil, fmt.Errorf("%w: %s %s needs one value", ErrInvalidQuery, c.Column, c.Op)
		}

		args, err := bindAll(c.Values)
		if err != nil {
			return "", nil, err
		}

		return col + " " + c.Op + " ?", args, nil
	}

	return "", nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, c.Op)
}

func bindAll(values []any) ([]any, error) {
	out := make([]any, len(values))

	for i, v := range values {
		b, err := toDB(v)
		if err != nil {
			return nil, err
		}

		out[i] = b
	}

	return out, nil
}

// Cursor iterates query results row by row.
type Cursor struct {
	rows   *sql.Rows
	entity *schema.Entity
	rec    *Record
	err    error
}

// Select runs a query outside any transaction and returns a cursor over the
// matching records. The caller must Close it.
func (s *Store) Select(ctx context.Context, q Query) (*Cursor, error) {
	return selectCursor(ctx, s.db, q)
}

func selectCursor(ctx context.Context, db querier, q Query) (*Cursor, error) {
	text, args, err := q.build()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, fmt.Errorf("store: querying %s: %w", q.Entity.Table, err)
	}

	return &Cursor{rows: rows, entity: q.Entity}, nil
}

// Next advances to the next record.
func (c *Cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}

	c.rec, c.err = scanRecord(c.entity, c.rows)

	return c.err == nil
}

// Record returns the current record.
func (c *Cursor) Record() *Record {
	return c.rec
}

// Err returns the first error met while iterating.
func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}

	return c.rows.Err()
}

// Close releases the cursor.
func (c *Cursor) Close() error {
	return c.rows.Close()
}

// collect runs a query and reads all results. Used inside transactions,
// where a cursor must not stay open across writes.
func collect(ctx context.Context, db querier, q Query) ([]*Record, error) {
	cur, err := selectCursor(ctx, db, q)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []*Record
	for cur.Next() {
		out = append(out, cur.Record())
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("store: reading %s: %w", q.Entity.Table, err)
	}

	return out, nil
}

func scanRecord(e *schema.Entity, rows *sql.Rows) (*Record, error) {
	values := make([]any, len(e.Columns))
	ptrs := make([]any, len(e.Columns))

	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("store: scanning %s: %w", e.Table, err)
	}

	rec := NewRecord(e)
	for i, c := range e.Columns {
		rec.attrs[c.Name] = fromDB(c, values[i])
	}

	rec.syncOriginal()

	return rec, nil
}
