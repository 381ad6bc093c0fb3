// Package db defines the query-executor capability the engine consumes.
// It is satisfied by *pgxpool.Pool; components never manage connections
// themselves, the pool scopes acquisition to each call.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier executes parameterized statements. The method set matches pgx so
// that pgxpool.Pool, pgx.Conn and pgx.Tx all satisfy it, and so do scany's
// scan helpers.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
