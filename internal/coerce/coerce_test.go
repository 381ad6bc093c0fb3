package coerce

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/core/apperror"
	"tabula/internal/core/convention"
	"tabula/internal/schema"
)

// fakeSequencer hands out keys from a fixed counter.
type fakeSequencer struct {
	next  int64
	calls int
}

func (f *fakeSequencer) NextKey(ctx context.Context, table, keyColumn string) (int64, error) {
	f.calls++
	return f.next, nil
}

func testColumns() []schema.Column {
	return []schema.Column{
		{Name: "emp_id", DataType: "integer", Family: schema.FamilyInteger},
		{Name: "emp_name", DataType: "text", Family: schema.FamilyText},
		{Name: "emp_dept_id", DataType: "integer", Family: schema.FamilyInteger},
		{Name: "emp_salary", DataType: "numeric", Family: schema.FamilyNumeric},
		{Name: "emp_start_date", DataType: "date", Family: schema.FamilyDate},
		{Name: "emp_created", DataType: "timestamp without time zone", Family: schema.FamilyOther},
		{Name: "emp_modified", DataType: "timestamp without time zone", Family: schema.FamilyOther},
		{Name: "emp_created_by", DataType: "text", Family: schema.FamilyText},
		{Name: "emp_modified_by", DataType: "text", Family: schema.FamilyText},
	}
}

func newCoercer(seq KeySequencer) *Coercer {
	return New(convention.Default(), seq)
}

func TestCoerce_DropsUnsuppliedAndProtectedFields(t *testing.T) {
	seq := &fakeSequencer{next: 1}
	c := newCoercer(seq)

	raw := map[string]any{
		"emp_name":        "Ada",
		"emp_dept_id":     "",    // empty string means not supplied
		"emp_salary":      nil,   // null means not supplied
		"emp_id":          99,    // client-chosen key must be ignored
		"emp_created":     "now", // audit timestamp, never client-writable
		"emp_created_by":  "Eve", // audit actor, never client-writable
		"emp_modified_by": "Eve",
	}

	clean, err := c.Coerce(context.Background(), "phc_emps_t", raw, testColumns(), "emp_id", ModeCreate)
	require.NoError(t, err)

	assert.Equal(t, "Ada", clean["emp_name"])
	assert.NotContains(t, clean, "emp_dept_id")
	assert.NotContains(t, clean, "emp_salary")
	assert.NotContains(t, clean, "emp_created")

	// Key and actors are system-assigned, not client-supplied.
	assert.Equal(t, int64(1), clean["emp_id"])
	assert.Equal(t, "System", clean["emp_created_by"])
	assert.Equal(t, "System", clean["emp_modified_by"])
}

func TestCoerce_AssignsSequentialKeys(t *testing.T) {
	seq := &fakeSequencer{next: 1}
	c := newCoercer(seq)
	cols := testColumns()

	clean, err := c.Coerce(context.Background(), "phc_emps_t", map[string]any{"emp_name": "First"}, cols, "emp_id", ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, int64(1), clean["emp_id"])

	seq.next = 2
	clean, err = c.Coerce(context.Background(), "phc_emps_t", map[string]any{"emp_name": "Second"}, cols, "emp_id", ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, int64(2), clean["emp_id"])
}

func TestCoerce_NoKeyColumnSkipsSequencer(t *testing.T) {
	seq := &fakeSequencer{next: 1}
	c := newCoercer(seq)

	clean, err := c.Coerce(context.Background(), "phc_logs_t", map[string]any{"emp_name": "x"}, testColumns(), "", ModeCreate)
	require.NoError(t, err)
	assert.Equal(t, 0, seq.calls)
	assert.NotContains(t, clean, "emp_id")
}

func TestCoerce_UpdateModeInjectsNothing(t *testing.T) {
	seq := &fakeSequencer{next: 7}
	c := newCoercer(seq)

	clean, err := c.Coerce(context.Background(), "phc_emps_t", map[string]any{"emp_name": "Ada"}, testColumns(), "emp_id", ModeUpdate)
	require.NoError(t, err)

	assert.Equal(t, 0, seq.calls)
	assert.NotContains(t, clean, "emp_id")
	assert.NotContains(t, clean, "emp_created_by")
	assert.NotContains(t, clean, "emp_modified_by")
}

func TestCoerce_DateParsing(t *testing.T) {
	c := newCoercer(&fakeSequencer{next: 1})
	cols := testColumns()

	clean, err := c.Coerce(context.Background(), "phc_emps_t",
		map[string]any{"emp_start_date": "2024-03-15"}, cols, "emp_id", ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), clean["emp_start_date"])
}

func TestCoerce_InvalidDateRejectsWholeWrite(t *testing.T) {
	c := newCoercer(&fakeSequencer{next: 1})

	_, err := c.Coerce(context.Background(), "phc_emps_t",
		map[string]any{"emp_name": "Ada", "emp_start_date": "2024-02-30"},
		testColumns(), "emp_id", ModeUpdate)

	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "emp_start_date", appErr.Details["field"])
	assert.Equal(t, "2024-02-30", appErr.Details["value"])
}

func TestCoerce_IntegerCoercion(t *testing.T) {
	c := newCoercer(&fakeSequencer{next: 1})
	cols := testColumns()

	tests := []struct {
		name  string
		value string
		want  any
	}{
		{"digits", "42", int64(42)},
		{"negative", "-17", int64(-17)},
		{"padded", "  42  ", int64(42)},
		{"not a number passes through", "abc", "abc"},
		{"decimal passes through", "12.5", "12.5"},
		{"over int64 range passes through", "18446744073709551617", "18446744073709551617"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean, err := c.Coerce(context.Background(), "phc_emps_t",
				map[string]any{"emp_dept_id": tt.value}, cols, "emp_id", ModeUpdate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, clean["emp_dept_id"])
		})
	}
}

func TestCoerce_EmptyPayloadRejected(t *testing.T) {
	c := newCoercer(&fakeSequencer{next: 1})

	_, err := c.Coerce(context.Background(), "phc_emps_t",
		map[string]any{"emp_id": 5, "emp_name": ""}, testColumns(), "emp_id", ModeUpdate)

	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeEmptyPayload, appErr.Code)
}

func TestCoerce_UnknownColumnPassesThrough(t *testing.T) {
	c := newCoercer(&fakeSequencer{next: 1})

	clean, err := c.Coerce(context.Background(), "phc_emps_t",
		map[string]any{"mystery": "value"}, testColumns(), "emp_id", ModeUpdate)
	require.NoError(t, err)
	assert.Equal(t, "value", clean["mystery"])
}

func TestParseInteger(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"0", 0, true},
		{"42", 42, true},
		{"-17", -17, true},
		{"+8", 8, true},
		{"", 0, false},
		{"-", 0, false},
		{"1.5", 0, false},
		{"12a", 0, false},
		{" 42", 0, false},
		{"9223372036854775807", 9223372036854775807, true},
		{"9223372036854775808", 0, false},
		{"18446744073709551617", 0, false},
		{"-9223372036854775809", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseInteger(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "input %q", tt.in)
		}
	}
}

func TestKey(t *testing.T) {
	v, err := Key("42", schema.FamilyInteger)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = Key("abc", schema.FamilyText)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	_, err = Key("abc", schema.FamilyInteger)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	_, err = Key("18446744073709551617", schema.FamilyInteger)
	require.Error(t, err)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}
