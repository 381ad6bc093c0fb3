// Package bootstrap holds the one-time startup seeding routine. It ensures a
// default organization record exists so that foreign-key dropdowns have at
// least one option on a fresh database. The routine is idempotent and
// decoupled from request handling: run it from cmd/seed or at server start.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"tabula/internal/core/convention"
	"tabula/internal/core/db"
	"tabula/internal/schema"
	"tabula/pkg/logger"
)

// DefaultOrgName is the display name of the seeded organization row.
const DefaultOrgName = "Default Organization"

// Run seeds the default organization when the orgs table exists. Missing
// table is a clean no-op: the schema may not include organizations at all.
func Run(ctx context.Context, querier db.Querier, policy convention.Policy) error {
	orgsTable, ok := policy.Overrides["org"]
	if !ok {
		logger.Info(ctx, "no orgs table in convention, nothing to seed")
		return nil
	}

	inspector := schema.NewInspector(querier, policy)
	tables, err := inspector.Tables(ctx)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	found := false
	for _, t := range tables {
		if t.Name == orgsTable {
			found = true
			break
		}
	}
	if !found {
		logger.Info(ctx, "orgs table absent, skipping seed", "table", orgsTable)
		return nil
	}

	cols, err := inspector.Columns(ctx, orgsTable)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", orgsTable, err)
	}
	names := schema.Names(cols)

	keyCol := policy.KeyColumn(names)
	if keyCol == "" {
		logger.Warn(ctx, "orgs table has no key column, skipping seed", "table", orgsTable)
		return nil
	}
	displayCol := policy.DisplayColumn(names, keyCol)
	if displayCol == keyCol {
		logger.Warn(ctx, "orgs table has no display column, skipping seed", "table", orgsTable)
		return nil
	}

	fields := map[string]any{
		keyCol:     1,
		displayCol: DefaultOrgName,
	}
	for _, name := range names {
		if policy.IsAuditActor(name) {
			fields[name] = policy.SystemActor
		}
	}

	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert(orgsTable).
		SetMap(fields).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build seed insert: %w", err)
	}

	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("seed %s: %w", orgsTable, err)
	}

	if tag.RowsAffected() == 0 {
		logger.Info(ctx, "default organization already present", "table", orgsTable)
	} else {
		logger.Info(ctx, "default organization seeded", "table", orgsTable, "key_column", keyCol)
	}
	return nil
}
