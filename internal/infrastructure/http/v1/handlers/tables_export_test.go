package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tabula/internal/core/convention"
	"tabula/internal/crud"
	"tabula/pkg/logger"
)

// exportDB serves the catalog queries and one data row for phc_emps_t.
type exportDB struct{}

func (exportDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected Exec")
}

func (exportDB) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	switch {
	case strings.Contains(sql, "information_schema.tables"):
		return &stubRows{cols: []string{"table_name"}, data: [][]any{{"phc_emps_t"}}}, nil
	case strings.Contains(sql, "information_schema.columns"):
		return &stubRows{
			cols: []string{"column_name", "data_type", "is_nullable", "ordinal_position"},
			data: [][]any{
				{"emp_id", "integer", "NO", 1},
				{"emp_name", "text", "YES", 2},
			},
		}, nil
	case strings.Contains(sql, "FROM phc_emps_t"):
		return &stubRows{
			cols: []string{"emp_id", "emp_name"},
			data: [][]any{{int64(1), "Ada"}},
		}, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", sql)
}

func (exportDB) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	if strings.Contains(sql, "key_column_usage") {
		return stubRow{value: "emp_id"}
	}
	return stubRow{err: fmt.Errorf("unexpected row query: %s", sql)}
}

type stubRow struct {
	value string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

type stubRows struct {
	cols []string
	data [][]any
	idx  int
}

func (r *stubRows) Close()                        {}
func (r *stubRows) Err() error                    { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *stubRows) RawValues() [][]byte           { return nil }
func (r *stubRows) Conn() *pgx.Conn               { return nil }

func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		fds[i].Name = c
	}
	return fds
}

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int:
			*p = row[i].(int)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

func (r *stubRows) Values() ([]any, error) { return r.data[r.idx-1], nil }

// brokenWriter fails every body write, like a client that hung up.
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header       { return w.header }
func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }
func (w *brokenWriter) WriteHeader(int)           {}

func exportContext(t *testing.T, w http.ResponseWriter) (*gin.Context, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zapcore.DebugLevel)
	obs := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tables/phc_emps_t/export", nil)
	c.Request = req.WithContext(logger.WithLogger(req.Context(), obs))
	c.Params = gin.Params{{Key: "table", Value: "phc_emps_t"}}
	return c, logs
}

func TestExport_WritesCSV(t *testing.T) {
	h := NewTablesHandler(NewBaseHandler(), crud.NewService(exportDB{}, convention.Default()))

	rec := httptest.NewRecorder()
	c, _ := exportContext(t, rec)
	h.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "phc_emps_t.csv")
	assert.Equal(t, "emp_id,emp_name\n1,Ada\n", rec.Body.String())
}

func TestExport_WriteFailureIsLogged(t *testing.T) {
	h := NewTablesHandler(NewBaseHandler(), crud.NewService(exportDB{}, convention.Default()))

	c, logs := exportContext(t, &brokenWriter{header: make(http.Header)})
	h.Export(c)

	// The status line is already committed when the body write fails, so the
	// handler must log the failure itself rather than register a gin error
	// nothing downstream would render.
	assert.Empty(t, c.Errors)
	entries := logs.FilterMessage("csv export write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}
