// Package crud synthesizes list, form, write and export operations for any
// in-scope table from catalog metadata alone. No per-table code exists
// anywhere: the schema inspector decides structure, the lookup resolver
// decides dropdowns, the coercer and writer perform the writes.
package crud

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"tabula/internal/coerce"
	"tabula/internal/core/apperror"
	"tabula/internal/core/convention"
	"tabula/internal/core/db"
	"tabula/internal/lookup"
	"tabula/internal/record"
	"tabula/internal/schema"
)

// MaxViewRows caps the table view result.
const MaxViewRows = 100

// Service exposes the table-name-parametric operations. Every operation
// authorizes the table against the live registry before doing anything else.
type Service struct {
	db        db.Querier
	policy    convention.Policy
	inspector *schema.Inspector
	resolver  *lookup.Resolver
	coercer   *coerce.Coercer
	writer    *record.Writer
}

// NewService wires the engine together over one query executor.
func NewService(querier db.Querier, policy convention.Policy) *Service {
	inspector := schema.NewInspector(querier, policy)
	writer := record.NewWriter(querier)
	return &Service{
		db:        querier,
		policy:    policy,
		inspector: inspector,
		resolver:  lookup.NewResolver(querier, inspector, policy),
		coercer:   coerce.New(policy, writer),
		writer:    writer,
	}
}

// TableView is the read model of one table: descriptors plus the most recent
// rows, cells ordered like Columns.
type TableView struct {
	Table      string          `json:"table"`
	Title      string          `json:"title"`
	Columns    []schema.Column `json:"columns"`
	PrimaryKey string          `json:"primaryKey,omitempty"`
	Rows       [][]any         `json:"rows"`
}

// FormField is one input of a synthesized form. Options are present only
// when the lookup resolver found a target table for the column.
type FormField struct {
	schema.Column
	Required bool            `json:"required"`
	Options  []lookup.Option `json:"options,omitempty"`
	Value    any             `json:"value,omitempty"`
}

// Form is a synthesized create or edit form.
type Form struct {
	Table  string      `json:"table"`
	Title  string      `json:"title"`
	Fields []FormField `json:"fields"`
}

// ListTables returns the registry: every table in scope, with display titles.
func (s *Service) ListTables(ctx context.Context) ([]schema.Table, error) {
	tables, err := s.inspector.Tables(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return tables, nil
}

// TableView reads columns, primary key and up to MaxViewRows rows,
// most-recent-first by the first column.
func (s *Service) TableView(ctx context.Context, table string) (*TableView, error) {
	if err := s.inspector.Authorize(ctx, table); err != nil {
		return nil, err
	}

	cols, err := s.inspector.Columns(ctx, table)
	if err != nil {
		return nil, storageErr(err)
	}
	primaryKey, err := s.inspector.PrimaryKey(ctx, table)
	if err != nil {
		return nil, storageErr(err)
	}

	q := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("*").
		From(table).
		OrderBy("1 DESC").
		Limit(MaxViewRows)

	rows, err := s.queryRows(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		renderRow(row, cols)
	}

	return &TableView{
		Table:      table,
		Title:      s.policy.Humanize(table),
		Columns:    cols,
		PrimaryKey: primaryKey,
		Rows:       rows,
	}, nil
}

// CreateForm synthesizes the create-form schema: all columns except the
// primary key and audit columns, with dropdown options for resolvable
// foreign-key columns.
func (s *Service) CreateForm(ctx context.Context, table string) (*Form, error) {
	if err := s.inspector.Authorize(ctx, table); err != nil {
		return nil, err
	}
	fields, _, err := s.formFields(ctx, table)
	if err != nil {
		return nil, err
	}
	return &Form{Table: table, Title: s.policy.Humanize(table), Fields: fields}, nil
}

// EditForm is CreateForm pre-populated with the current row values, dates
// rendered as calendar strings.
func (s *Service) EditForm(ctx context.Context, table, key string) (*Form, error) {
	if err := s.inspector.Authorize(ctx, table); err != nil {
		return nil, err
	}
	fields, primaryKey, err := s.formFields(ctx, table)
	if err != nil {
		return nil, err
	}
	if primaryKey == "" {
		return nil, apperror.NewNoPrimaryKey(table)
	}

	current, err := s.fetchRecord(ctx, table, primaryKey, key)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		if v, ok := current[fields[i].Name]; ok {
			fields[i].Value = renderValue(v, fields[i].Family)
		}
	}

	return &Form{Table: table, Title: s.policy.Humanize(table), Fields: fields}, nil
}

// Create coerces the payload and inserts one row. The assigned key and actor
// markers come from the system, never from the client.
func (s *Service) Create(ctx context.Context, table string, payload map[string]any) error {
	if err := s.inspector.Authorize(ctx, table); err != nil {
		return err
	}
	cols, primaryKey, err := s.describe(ctx, table)
	if err != nil {
		return err
	}

	clean, err := s.coercer.Coerce(ctx, table, payload, cols, primaryKey, coerce.ModeCreate)
	if err != nil {
		return err
	}
	return s.writer.Insert(ctx, table, clean)
}

// Update coerces the payload and rewrites the row identified by key. The key
// is held constant for the row's lifetime.
func (s *Service) Update(ctx context.Context, table, key string, payload map[string]any) error {
	if err := s.inspector.Authorize(ctx, table); err != nil {
		return err
	}
	cols, primaryKey, err := s.describe(ctx, table)
	if err != nil {
		return err
	}
	if primaryKey == "" {
		return apperror.NewNoPrimaryKey(table)
	}

	keyValue, err := s.keyValue(cols, primaryKey, key)
	if err != nil {
		return err
	}
	clean, err := s.coercer.Coerce(ctx, table, payload, cols, primaryKey, coerce.ModeUpdate)
	if err != nil {
		return err
	}

	affected, err := s.writer.Update(ctx, table, primaryKey, keyValue, clean)
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperror.NewNotFound(table, key)
	}
	return nil
}

// Delete removes the row identified by key and returns the affected count.
// Zero affected rows is a success: deleting twice is safe.
func (s *Service) Delete(ctx context.Context, table, key string) (int64, error) {
	if err := s.inspector.Authorize(ctx, table); err != nil {
		return 0, err
	}
	cols, primaryKey, err := s.describe(ctx, table)
	if err != nil {
		return 0, err
	}
	if primaryKey == "" {
		return 0, apperror.NewNoPrimaryKey(table)
	}

	keyValue, err := s.keyValue(cols, primaryKey, key)
	if err != nil {
		return 0, err
	}
	return s.writer.Delete(ctx, table, primaryKey, keyValue)
}

// Export returns the table as text cells: a header row of raw column names
// followed by one row per record, or a single record when key is non-empty.
func (s *Service) Export(ctx context.Context, table, key string) ([][]string, error) {
	if err := s.inspector.Authorize(ctx, table); err != nil {
		return nil, err
	}
	cols, primaryKey, err := s.describe(ctx, table)
	if err != nil {
		return nil, err
	}

	q := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("*").
		From(table).
		OrderBy("1")

	if key != "" {
		if primaryKey == "" {
			return nil, apperror.NewNoPrimaryKey(table)
		}
		keyValue, err := s.keyValue(cols, primaryKey, key)
		if err != nil {
			return nil, err
		}
		q = q.Where(squirrel.Eq{primaryKey: keyValue})
	}

	rows, err := s.queryRows(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(rows)+1)
	out = append(out, schema.Names(cols))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = cellText(v, family(cols, i))
		}
		out = append(out, cells)
	}
	return out, nil
}

// --- helpers ---

// describe reads the schema both write paths need.
func (s *Service) describe(ctx context.Context, table string) ([]schema.Column, string, error) {
	cols, err := s.inspector.Columns(ctx, table)
	if err != nil {
		return nil, "", storageErr(err)
	}
	primaryKey, err := s.inspector.PrimaryKey(ctx, table)
	if err != nil {
		return nil, "", storageErr(err)
	}
	return cols, primaryKey, nil
}

// formFields builds the writable form fields of a table: primary key and
// audit columns excluded, lookups resolved per foreign-key-shaped column.
func (s *Service) formFields(ctx context.Context, table string) ([]FormField, string, error) {
	cols, primaryKey, err := s.describe(ctx, table)
	if err != nil {
		return nil, "", err
	}

	fields := make([]FormField, 0, len(cols))
	for _, col := range cols {
		if col.Name == primaryKey {
			continue
		}
		if s.policy.IsAuditColumn(col.Name) {
			continue
		}

		field := FormField{Column: col, Required: !col.Nullable}
		if s.policy.IsForeignKeyShaped(col.Name) {
			field.Options = s.resolver.Resolve(ctx, col.Name)
		}
		fields = append(fields, field)
	}
	return fields, primaryKey, nil
}

// keyValue coerces a path-supplied key to the key column's declared type.
func (s *Service) keyValue(cols []schema.Column, primaryKey, key string) (any, error) {
	col, ok := schema.ByName(cols, primaryKey)
	if !ok {
		return key, nil
	}
	return coerce.Key(key, col.Family)
}

// fetchRecord reads one row as a column-name map.
func (s *Service) fetchRecord(ctx context.Context, table, primaryKey, key string) (map[string]any, error) {
	cols, err := s.inspector.Columns(ctx, table)
	if err != nil {
		return nil, storageErr(err)
	}
	keyValue, err := s.keyValue(cols, primaryKey, key)
	if err != nil {
		return nil, err
	}

	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("*").
		From(table).
		Where(squirrel.Eq{primaryKey: keyValue}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, apperror.NewDatabase(err)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperror.NewDatabase(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, apperror.NewDatabase(err)
		}
		return nil, apperror.NewNotFound(table, key)
	}

	values, err := rows.Values()
	if err != nil {
		return nil, apperror.NewDatabase(err)
	}
	descs := rows.FieldDescriptions()
	row := make(map[string]any, len(descs))
	for i, d := range descs {
		row[d.Name] = values[i]
	}
	return row, nil
}

// queryRows runs a SELECT * builder and collects raw cell slices.
func (s *Service) queryRows(ctx context.Context, q squirrel.SelectBuilder) ([][]any, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewDatabase(err)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperror.NewDatabase(err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, apperror.NewDatabase(err)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewDatabase(err)
	}
	return out, nil
}

// renderRow formats date cells in place.
func renderRow(row []any, cols []schema.Column) {
	for i := range row {
		row[i] = renderValue(row[i], family(cols, i))
	}
}

// renderValue formats a cell for the read paths: dates as YYYY-MM-DD,
// everything else untouched.
func renderValue(v any, f schema.TypeFamily) any {
	if t, ok := v.(time.Time); ok && f == schema.FamilyDate {
		return t.Format(coerce.DateLayout)
	}
	return v
}

func family(cols []schema.Column, i int) schema.TypeFamily {
	if i < len(cols) {
		return cols[i].Family
	}
	return schema.FamilyOther
}

func cellText(v any, f schema.TypeFamily) string {
	if v == nil {
		return ""
	}
	if t, ok := v.(time.Time); ok && f == schema.FamilyDate {
		return t.Format(coerce.DateLayout)
	}
	return fmt.Sprint(v)
}

// storageErr passes structured errors through and wraps raw catalog/query
// failures as storage errors.
func storageErr(err error) error {
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	return apperror.NewDatabase(err)
}
