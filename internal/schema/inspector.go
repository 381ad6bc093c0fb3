// Package schema reads table and column metadata from the database catalog.
// Nothing is cached: every call re-reads information_schema so that tables
// added while the service runs show up on the next request.
package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"tabula/internal/core/apperror"
	"tabula/internal/core/convention"
	"tabula/internal/core/db"
)

// Inspector enumerates in-scope tables and introspects their columns and
// primary keys. It doubles as the authorization boundary: a table name not
// returned by Tables must be rejected by every operation.
type Inspector struct {
	db     db.Querier
	policy convention.Policy
}

// NewInspector creates an Inspector.
func NewInspector(querier db.Querier, policy convention.Policy) *Inspector {
	return &Inspector{db: querier, policy: policy}
}

// Tables lists tables in the public schema carrying the scope prefix.
// Ordering is catalog-defined and stable for a fixed schema state.
func (i *Inspector) Tables(ctx context.Context) ([]Table, error) {
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name LIKE $1
	`

	var names []string
	if err := pgxscan.Select(ctx, i.db, &names, q, i.policy.Prefix+"%"); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	tables := make([]Table, len(names))
	for n, name := range names {
		tables[n] = Table{Name: name, Title: i.policy.Humanize(name)}
	}
	return tables, nil
}

// Authorize checks the table against the live registry. Returns an
// invalid-table error when the name is out of scope. The check runs on every
// request because the catalog can change between requests.
func (i *Inspector) Authorize(ctx context.Context, table string) error {
	tables, err := i.Tables(ctx)
	if err != nil {
		return err
	}
	for _, t := range tables {
		if t.Name == table {
			return nil
		}
	}
	return apperror.NewInvalidTable(table)
}

type catalogColumn struct {
	ColumnName      string `db:"column_name"`
	DataType        string `db:"data_type"`
	IsNullable      string `db:"is_nullable"`
	OrdinalPosition int    `db:"ordinal_position"`
}

// Columns returns the table's column descriptors ordered by catalog ordinal
// position. This ordering is authoritative for list display and form order.
func (i *Inspector) Columns(ctx context.Context, table string) ([]Column, error) {
	const q = `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position
	`

	var raw []catalogColumn
	if err := pgxscan.Select(ctx, i.db, &raw, q, table); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}

	cols := make([]Column, len(raw))
	for n, r := range raw {
		cols[n] = Column{
			Name:     r.ColumnName,
			DataType: r.DataType,
			Family:   FamilyOf(r.DataType),
			Nullable: r.IsNullable == "YES",
			Label:    i.policy.Humanize(r.ColumnName),
			Ordinal:  r.OrdinalPosition,
		}
	}
	return cols, nil
}

// PrimaryKey returns the table's primary key column, or "" when the table
// has none. Composite primary keys are not supported: only the first column
// of the constraint is used.
func (i *Inspector) PrimaryKey(ctx context.Context, table string) (string, error) {
	const q = `
		SELECT kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
		  ON kcu.constraint_name = tc.constraint_name
		WHERE kcu.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'
		LIMIT 1
	`

	var column string
	err := i.db.QueryRow(ctx, q, table).Scan(&column)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("primary key of %s: %w", table, err)
	}
	return column, nil
}
