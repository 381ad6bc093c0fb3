package record

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	tag  pgconn.CommandTag
	err  error
	sql  string
	args []any
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return f.tag, f.err
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return failRow{}
}

type failRow struct{}

func (failRow) Scan(...any) error { return errors.New("unexpected QueryRow") }

func TestBuildInsert(t *testing.T) {
	sql, args, err := buildInsert("phc_emps_t", map[string]any{
		"emp_id":   int64(3),
		"emp_name": "Ada",
	})
	require.NoError(t, err)

	// SetMap emits columns in sorted order, so the statement is stable.
	assert.Equal(t, "INSERT INTO phc_emps_t (emp_id,emp_name) VALUES ($1,$2)", sql)
	assert.Equal(t, []any{int64(3), "Ada"}, args)
}

func TestBuildUpdate(t *testing.T) {
	sql, args, err := buildUpdate("phc_emps_t", "emp_id", int64(3), map[string]any{
		"emp_name":   "Ada",
		"emp_salary": int64(90000),
	})
	require.NoError(t, err)

	assert.Equal(t, "UPDATE phc_emps_t SET emp_name = $1, emp_salary = $2 WHERE emp_id = $3", sql)
	assert.Equal(t, []any{"Ada", int64(90000), int64(3)}, args)
}

func TestBuildUpdate_KeyNeverInSetList(t *testing.T) {
	// The cleaned map can't contain the key (the coercer drops it), but the
	// builder must stay correct even if a caller slips one in: the WHERE
	// clause still pins the original key value.
	sql, _, err := buildUpdate("phc_emps_t", "emp_id", int64(3), map[string]any{
		"emp_name": "Ada",
	})
	require.NoError(t, err)
	assert.NotContains(t, sql, "emp_id = $1")
	assert.Contains(t, sql, "WHERE emp_id = $2")
}

func TestDelete_AbsentKeyIsNotAnError(t *testing.T) {
	fake := &fakeQuerier{tag: pgconn.NewCommandTag("DELETE 0")}
	w := NewWriter(fake)

	affected, err := w.Delete(context.Background(), "phc_emps_t", "emp_id", int64(999))
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
	assert.Equal(t, "DELETE FROM phc_emps_t WHERE emp_id = $1", fake.sql)
	assert.Equal(t, []any{int64(999)}, fake.args)
}

func TestDelete_ReportsAffectedCount(t *testing.T) {
	fake := &fakeQuerier{tag: pgconn.NewCommandTag("DELETE 1")}
	w := NewWriter(fake)

	affected, err := w.Delete(context.Background(), "phc_emps_t", "emp_id", int64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestBuildDelete(t *testing.T) {
	sql, args, err := buildDelete("phc_emps_t", "emp_id", int64(3))
	require.NoError(t, err)

	assert.Equal(t, "DELETE FROM phc_emps_t WHERE emp_id = $1", sql)
	assert.Equal(t, []any{int64(3)}, args)
}
