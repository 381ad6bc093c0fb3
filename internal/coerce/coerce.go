// Package coerce turns a client-submitted field map into a cleaned, typed map
// ready for a single parameterized write. It enforces the write-side
// invariants: the primary key and audit columns are never client-writable,
// and a date that fails to parse rejects the whole operation.
package coerce

import (
	"context"
	"strconv"
	"strings"
	"time"

	"tabula/internal/core/apperror"
	"tabula/internal/core/convention"
	"tabula/internal/schema"
)

// DateLayout is the calendar date format accepted from clients and emitted
// by read paths.
const DateLayout = "2006-01-02"

// Mode selects create or update semantics.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

// KeySequencer assigns the next primary key value for a table. The record
// writer implements this with MAX(key)+1; see the package comment there for
// the concurrency caveat.
type KeySequencer interface {
	NextKey(ctx context.Context, table, keyColumn string) (int64, error)
}

// Coercer cleans and types submitted field maps.
type Coercer struct {
	policy convention.Policy
	seq    KeySequencer
}

// New creates a Coercer.
func New(policy convention.Policy, seq KeySequencer) *Coercer {
	return &Coercer{policy: policy, seq: seq}
}

// Coerce applies the cleaning rules to raw and returns the cleaned map.
// Empty-string and nil values mean "not supplied" and are dropped, which
// also means a column cannot be explicitly nulled through this path.
// On create the next primary key value and the system actor markers are
// injected regardless of client input. An empty result rejects the write.
func (c *Coercer) Coerce(ctx context.Context, table string, raw map[string]any, cols []schema.Column, primaryKey string, mode Mode) (map[string]any, error) {
	clean := make(map[string]any, len(raw))

	for name, value := range raw {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		if name == primaryKey {
			continue
		}
		if c.policy.IsAuditColumn(name) {
			continue
		}

		typed, err := c.coerceValue(name, value, cols)
		if err != nil {
			return nil, err
		}
		clean[name] = typed
	}

	if mode == ModeCreate {
		if primaryKey != "" {
			next, err := c.seq.NextKey(ctx, table, primaryKey)
			if err != nil {
				return nil, err
			}
			clean[primaryKey] = next
		}
		for _, col := range cols {
			if c.policy.IsAuditActor(col.Name) {
				clean[col.Name] = c.policy.SystemActor
			}
		}
	}

	if len(clean) == 0 {
		return nil, apperror.NewEmptyPayload()
	}
	return clean, nil
}

// coerceValue types a single field against its declared column. Columns not
// present in the schema, and non-textual values, pass through unchanged and
// the database's own type checking has the last word.
func (c *Coercer) coerceValue(name string, value any, cols []schema.Column) (any, error) {
	col, known := schema.ByName(cols, name)
	if !known {
		return value, nil
	}

	text, isText := value.(string)
	if !isText {
		return value, nil
	}

	switch {
	case col.Family == schema.FamilyDate:
		t, err := time.Parse(DateLayout, text)
		if err != nil {
			return nil, apperror.NewValidation("invalid date").
				WithDetail("field", name).
				WithDetail("value", text)
		}
		return t, nil

	case col.Family.IsNumeric():
		if n, ok := ParseInteger(strings.TrimSpace(text)); ok {
			return n, nil
		}
		return value, nil

	default:
		return value, nil
	}
}

// Key coerces a path-supplied key value to the key column's declared type.
// Numeric key columns reject values that are not plain integers.
func Key(value string, family schema.TypeFamily) (any, error) {
	if family.IsNumeric() {
		n, ok := ParseInteger(strings.TrimSpace(value))
		if !ok {
			return nil, apperror.NewValidation("invalid key format").
				WithDetail("value", value)
		}
		return n, nil
	}
	return value, nil
}

// ParseInteger parses a pure digit string, optionally signed. Anything else,
// including values out of int64 range, reports false: such values are passed
// through for the database to judge.
func ParseInteger(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
