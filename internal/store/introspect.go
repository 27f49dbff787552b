package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tonimelisma/schema-api/internal/schema"
)

const sqlListTables = `SELECT name FROM sqlite_master
	WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

const sqlTableInfo = `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`

// Tables lists the user tables of the database.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, sqlListTables)
	if err != nil {
		return nil, fmt.Errorf("store: listing tables: %w", err)
	}
	defer rows.Close()

	var tables []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: scanning table name: %w", err)
		}

		tables = append(tables, name)
	}

	return tables, rows.Err()
}

// Columns describes the columns of a table. A missing table has none.
func (s *Store) Columns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := s.db.QueryContext(ctx, sqlTableInfo, table)
	if err != nil {
		return nil, fmt.Errorf("store: reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.Column

	for rows.Next() {
		var (
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)

		if err := rows.Scan(&name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("store: scanning column of %s: %w", table, err)
		}

		cols = append(cols, schema.Column{
			Name:       name,
			Type:       strings.ToLower(strings.TrimSpace(typ)),
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
			HasDefault: dflt.Valid,
		})
	}

	return cols, rows.Err()
}
