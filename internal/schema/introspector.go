// Package schema reads column metadata for a table and renders it as the
// text block fed to the generation prompt.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrTableNotFound = errors.New("table not found")

type Column struct {
	Name string
	Type string
}

// Description is a table name plus its ordered column metadata, captured
// once at table selection time. It goes stale if the table is altered
// out-of-band; there is no refresh path.
type Description struct {
	Table   string
	Columns []Column
}

// Text renders the description as the prompt block.
func (d Description) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Table %s columns:\n", d.Table)
	for _, column := range d.Columns {
		fmt.Fprintf(&sb, "  %s %s\n", column.Name, strings.ToUpper(column.Type))
	}
	return sb.String()
}

type Introspector struct {
	db *sql.DB
}

func NewIntrospector(db *sql.DB) *Introspector {
	return &Introspector{db: db}
}

const columnsQuery = `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_name = $1
ORDER BY ordinal_position`

// Describe lists column names and declared types for exactly one table, in
// ordinal position order. Keys, indexes and constraints are not inspected.
func (i *Introspector) Describe(ctx context.Context, table string) (Description, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return Description{}, fmt.Errorf("table name is required")
	}

	rows, err := i.db.QueryContext(ctx, columnsQuery, table)
	if err != nil {
		return Description{}, fmt.Errorf("read column metadata for %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var column Column
		if err := rows.Scan(&column.Name, &column.Type); err != nil {
			return Description{}, fmt.Errorf("scan column row: %w", err)
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return Description{}, fmt.Errorf("iterate column rows: %w", err)
	}
	if len(columns) == 0 {
		return Description{}, fmt.Errorf("describe %q: %w", table, ErrTableNotFound)
	}

	return Description{Table: table, Columns: columns}, nil
}
