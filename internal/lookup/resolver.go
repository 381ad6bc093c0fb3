// Package lookup resolves foreign-key-shaped columns to dropdown options.
// Resolution is a best-effort guess from naming conventions, not a reading of
// declared foreign-key constraints; any failure degrades to "no options" and
// the column renders as a plain input.
package lookup

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"tabula/internal/core/convention"
	"tabula/internal/core/db"
	"tabula/internal/schema"
	"tabula/pkg/logger"
)

// MaxOptions caps the number of dropdown entries per lookup.
const MaxOptions = 100

// Option is one id/label pair of a dropdown.
type Option struct {
	ID   any    `json:"id"`
	Name string `json:"name"`
}

// Resolver guesses and verifies lookup tables for foreign-key columns.
type Resolver struct {
	db        db.Querier
	inspector *schema.Inspector
	policy    convention.Policy
}

// NewResolver creates a Resolver.
func NewResolver(querier db.Querier, inspector *schema.Inspector, policy convention.Policy) *Resolver {
	return &Resolver{db: querier, inspector: inspector, policy: policy}
}

// Resolve returns dropdown options for a foreign-key-shaped column, ordered
// by display column ascending and capped at MaxOptions. A nil result means
// the column has no dropdown; it is never an error to the caller.
func (r *Resolver) Resolve(ctx context.Context, fkColumn string) []Option {
	options, err := r.resolve(ctx, fkColumn)
	if err != nil {
		logger.Debug(ctx, "lookup resolution degraded", "column", fkColumn, "error", err)
		return nil
	}
	return options
}

func (r *Resolver) resolve(ctx context.Context, fkColumn string) ([]Option, error) {
	entity := r.policy.EntityName(fkColumn)

	target, err := r.targetTable(ctx, entity)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return nil, nil
	}

	cols, err := r.inspector.Columns(ctx, target)
	if err != nil {
		return nil, err
	}
	names := schema.Names(cols)

	keyCol := r.policy.KeyColumn(names)
	if keyCol == "" {
		return nil, nil
	}
	displayCol := r.policy.DisplayColumn(names, keyCol)

	return r.fetchOptions(ctx, target, keyCol, displayCol)
}

// targetTable finds the lookup table for an entity name.
func (r *Resolver) targetTable(ctx context.Context, entity string) (string, error) {
	tables, err := r.inspector.Tables(ctx)
	if err != nil {
		return "", err
	}
	registry := make([]string, len(tables))
	for i, t := range tables {
		registry[i] = t.Name
	}

	return chooseTarget(r.policy, entity, registry, func(table string) (bool, error) {
		return r.tableExists(ctx, table)
	})
}

// chooseTarget applies the resolution order: the curated override map wins
// over naive pluralization, but only when the override table actually exists.
func chooseTarget(policy convention.Policy, entity string, registry []string, exists func(string) (bool, error)) (string, error) {
	if table, ok := policy.Overrides[entity]; ok {
		found, err := exists(table)
		if err != nil {
			return "", err
		}
		if found {
			return table, nil
		}
	}
	return ChooseCandidate(policy, entity, registry), nil
}

// ChooseCandidate intersects the pluralized candidates with the registry.
// The registry's own order decides ties, so the result is deterministic per
// catalog state but not alphabetically predictable.
func ChooseCandidate(policy convention.Policy, entity string, registry []string) string {
	candidates := make(map[string]struct{})
	for _, c := range policy.TableCandidates(entity) {
		candidates[c] = struct{}{}
	}
	for _, table := range registry {
		if _, ok := candidates[table]; ok {
			return table
		}
	}
	return ""
}

func (r *Resolver) tableExists(ctx context.Context, table string) (bool, error) {
	const q = `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, q, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return exists, nil
}

func (r *Resolver) fetchOptions(ctx context.Context, table, keyCol, displayCol string) ([]Option, error) {
	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(keyCol, displayCol).
		From(table).
		OrderBy(displayCol + " ASC").
		Limit(MaxOptions).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lookup query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}
	defer rows.Close()

	var options []Option
	for rows.Next() {
		var id, name any
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan lookup row: %w", err)
		}
		options = append(options, Option{ID: id, Name: fmt.Sprint(name)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup rows: %w", err)
	}
	return options, nil
}
