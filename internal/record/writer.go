// Package record executes the single-statement writes. Every operation is
// exactly one parameterized INSERT, UPDATE or DELETE; there is no
// multi-statement transaction to roll back.
package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"tabula/internal/core/apperror"
	"tabula/internal/core/db"
)

// Writer performs inserts, updates and deletes with a cleaned field map.
// Column and table identifiers always come from the catalog, never from
// client input, so only values are parameterized.
type Writer struct {
	db db.Querier
}

// NewWriter creates a Writer.
func NewWriter(querier db.Querier) *Writer {
	return &Writer{db: querier}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Insert writes one row from the cleaned map. The primary key value, when
// the table has one, is already part of the map.
func (w *Writer) Insert(ctx context.Context, table string, fields map[string]any) error {
	sql, args, err := buildInsert(table, fields)
	if err != nil {
		return apperror.NewDatabase(err)
	}
	if _, err := w.db.Exec(ctx, sql, args...); err != nil {
		return classify(err, table)
	}
	return nil
}

// Update rewrites the cleaned map's columns on the row identified by the
// primary key. The key itself is never in the SET list. Returns the number
// of rows affected.
func (w *Writer) Update(ctx context.Context, table, keyColumn string, keyValue any, fields map[string]any) (int64, error) {
	sql, args, err := buildUpdate(table, keyColumn, keyValue, fields)
	if err != nil {
		return 0, apperror.NewDatabase(err)
	}
	tag, err := w.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, classify(err, table)
	}
	return tag.RowsAffected(), nil
}

// Delete removes the row identified by the primary key. Deleting an absent
// key is not an error: callers get a zero affected count and decide for
// themselves whether that matters.
func (w *Writer) Delete(ctx context.Context, table, keyColumn string, keyValue any) (int64, error) {
	sql, args, err := buildDelete(table, keyColumn, keyValue)
	if err != nil {
		return 0, apperror.NewDatabase(err)
	}
	tag, err := w.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, classify(err, table)
	}
	return tag.RowsAffected(), nil
}

// NextKey computes MAX(key)+1, defaulting to 1 for an empty table. This is a
// read-then-write sequence with no isolation guarantee: two concurrent
// creates can compute the same value and the second insert fails on the key
// constraint. Swapping in a database sequence would be contract-compatible.
func (w *Writer) NextKey(ctx context.Context, table, keyColumn string) (int64, error) {
	q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s", keyColumn, table)
	var next int64
	if err := w.db.QueryRow(ctx, q).Scan(&next); err != nil {
		return 0, apperror.NewDatabase(fmt.Errorf("next key for %s: %w", table, err))
	}
	return next, nil
}

func buildInsert(table string, fields map[string]any) (string, []any, error) {
	return builder().
		Insert(table).
		SetMap(fields).
		ToSql()
}

func buildUpdate(table, keyColumn string, keyValue any, fields map[string]any) (string, []any, error) {
	return builder().
		Update(table).
		SetMap(fields).
		Where(squirrel.Eq{keyColumn: keyValue}).
		ToSql()
}

func buildDelete(table, keyColumn string, keyValue any) (string, []any, error) {
	return builder().
		Delete(table).
		Where(squirrel.Eq{keyColumn: keyValue}).
		ToSql()
}

// classify maps storage failures onto the error taxonomy. Constraint
// violations are client-resolvable conflicts; everything else surfaces as a
// database error carrying the underlying message.
func classify(err error, table string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperror.NewDuplicate(table).WithCause(err)
		case "23503":
			return apperror.NewConflict("record is referenced by other data").
				WithDetail("table", table).
				WithCause(err)
		}
	}
	return apperror.NewDatabase(err)
}
