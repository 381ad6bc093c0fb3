// Package convention defines the naming policy that marks tables as eligible
// for generic handling and derives labels, entity names and lookup candidates
// from raw identifiers. All functions are pure; the policy carries no state
// beyond its configuration.
package convention

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Policy holds the naming convention. Identifiers are matched against a fixed
// table prefix and single-letter type suffix; key and audit columns are
// recognized by suffix.
type Policy struct {
	// Prefix marks a table as in scope, e.g. "phc_".
	Prefix string

	// TableSuffix is the table-type marker, e.g. "_t".
	TableSuffix string

	// KeySuffix marks key columns, e.g. "_id".
	KeySuffix string

	// Audit column suffixes. Timestamp columns are dropped from writes;
	// actor columns are system-assigned on create.
	CreatedSuffix    string
	ModifiedSuffix   string
	CreatedBySuffix  string
	ModifiedBySuffix string

	// SystemActor is written into audit-actor columns on create.
	SystemActor string

	// Overrides maps irregular entity names to their lookup table.
	// Checked before naive pluralization.
	Overrides map[string]string

	// DisplayPriority lists substrings tried in order when picking the
	// display column of a lookup table.
	DisplayPriority []string
}

// Default returns the production policy.
func Default() Policy {
	return Policy{
		Prefix:           "phc_",
		TableSuffix:      "_t",
		KeySuffix:        "_id",
		CreatedSuffix:    "_created",
		ModifiedSuffix:   "_modified",
		CreatedBySuffix:  "_created_by",
		ModifiedBySuffix: "_modified_by",
		SystemActor:      "System",
		Overrides: map[string]string{
			"dept":        "phc_dept_t",
			"org":         "phc_orgs_t",
			"services":    "phc_services_t",
			"cost_center": "phc_cost_center_t",
			"app":         "phc_apps_t",
			"apps":        "phc_apps_t",
		},
		DisplayPriority: []string{"name", "title", "code", "desc", "description", "detail"},
	}
}

// Humanize converts a raw table or column identifier into a display label.
// The scope prefix and table-type suffix are stripped first; only then is the
// short-code segment checked, and the check is positional.
// A fresh Caser per call: cases.Caser is stateful and Humanize runs on
// concurrent requests.
func (p Policy) Humanize(identifier string) string {
	s := strings.TrimPrefix(identifier, p.Prefix)
	s = strings.TrimSuffix(s, p.TableSuffix)
	s = p.stripShortCode(s)
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// EntityName extracts the normalized stem of a foreign-key column, used to
// guess its lookup table. "ord_cost_center_id" -> "cost_center".
func (p Policy) EntityName(fkColumn string) string {
	base := strings.TrimSuffix(fkColumn, p.KeySuffix)
	return p.stripShortCode(base)
}

// stripShortCode drops a leading three-letter module code ("abc_") when the
// fourth character is an underscore. Short identifiers are left alone.
func (p Policy) stripShortCode(s string) string {
	if len(s) > 4 && s[3] == '_' {
		return s[4:]
	}
	return s
}

// TableCandidates returns the naively pluralized table names tried against
// the registry when no override matches. Candidate order does not decide
// ties; the scan order of the live registry does.
func (p Policy) TableCandidates(entity string) []string {
	candidates := []string{
		p.Prefix + entity + p.TableSuffix,
		p.Prefix + entity + "s" + p.TableSuffix,
		p.Prefix + entity + "es" + p.TableSuffix,
	}
	if strings.HasSuffix(entity, "y") {
		candidates = append(candidates, p.Prefix+entity[:len(entity)-1]+"ies"+p.TableSuffix)
	}
	return candidates
}

// InScope reports whether a table name carries the scope prefix.
func (p Policy) InScope(table string) bool {
	return strings.HasPrefix(table, p.Prefix)
}

// IsForeignKeyShaped reports whether a column name looks like a reference.
func (p Policy) IsForeignKeyShaped(column string) bool {
	return strings.HasSuffix(column, p.KeySuffix)
}

// IsAuditActor reports whether a column records creation/modification actors.
func (p Policy) IsAuditActor(column string) bool {
	return strings.HasSuffix(column, p.CreatedBySuffix) || strings.HasSuffix(column, p.ModifiedBySuffix)
}

// IsAuditColumn reports whether a column is audit provenance of any kind.
// Audit columns are never client-writable.
func (p Policy) IsAuditColumn(column string) bool {
	return p.IsAuditActor(column) ||
		strings.HasSuffix(column, p.CreatedSuffix) ||
		strings.HasSuffix(column, p.ModifiedSuffix)
}

// DisplayColumn picks the human-facing column of a lookup table by testing
// the priority substrings in order against every column name. Falls back to
// the key column when nothing matches.
func (p Policy) DisplayColumn(columns []string, keyColumn string) string {
	for _, want := range p.DisplayPriority {
		for _, col := range columns {
			if strings.Contains(col, want) {
				return col
			}
		}
	}
	return keyColumn
}

// KeyColumn returns the first column carrying the key suffix, or "".
func (p Policy) KeyColumn(columns []string) string {
	for _, col := range columns {
		if strings.HasSuffix(col, p.KeySuffix) {
			return col
		}
	}
	return ""
}
