package schema

// TypeFamily is the closed set of declared-type classes the engine
// distinguishes. Everything else passes through untouched.
type TypeFamily string

const (
	FamilyText    TypeFamily = "text"
	FamilyInteger TypeFamily = "integer"
	FamilyNumeric TypeFamily = "numeric"
	FamilyDate    TypeFamily = "date"
	FamilyOther   TypeFamily = "other"
)

// FamilyOf maps a catalog data_type to its family.
func FamilyOf(dataType string) TypeFamily {
	switch dataType {
	case "integer", "bigint", "smallint":
		return FamilyInteger
	case "numeric":
		return FamilyNumeric
	case "date":
		return FamilyDate
	case "text", "character varying", "character":
		return FamilyText
	default:
		return FamilyOther
	}
}

// IsNumeric reports whether values of this family are coerced to numbers
// before a write.
func (f TypeFamily) IsNumeric() bool {
	return f == FamilyInteger || f == FamilyNumeric
}

// Table describes an in-scope table. Recomputed from catalog state on every
// request; never persisted.
type Table struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Column describes one column of a table, in catalog ordinal order.
type Column struct {
	Name     string     `json:"name"`
	DataType string     `json:"dataType"`
	Family   TypeFamily `json:"family"`
	Nullable bool       `json:"nullable"`
	Label    string     `json:"label"`
	Ordinal  int        `json:"ordinal"`
}

// Names returns the raw column names in order.
func Names(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// ByName returns the column with the given raw name, if present.
func ByName(cols []Column, name string) (Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
