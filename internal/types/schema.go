// Package types holds the column/schema/constraint model shared by the
// serializer, table, catalog and executor packages.
package types

import "fmt"

// ColumnType is one of the three fixed-width scalar types YARRD supports.
type ColumnType uint8

const (
	Integer ColumnType = iota
	Float
	String
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Float:
		return "FLOAT"
	case String:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// ParseColumnType maps a SQL type keyword onto a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	switch s {
	case "INTEGER", "INT":
		return Integer, nil
	case "FLOAT", "REAL":
		return Float, nil
	case "STRING", "TEXT", "VARCHAR":
		return String, nil
	default:
		return 0, fmt.Errorf("types: unknown column type %q", s)
	}
}

// ConstraintKind tags a Constraint's variant.
type ConstraintKind uint8

const (
	NotNull ConstraintKind = iota
	Default
	Check
)

// Constraint is attached to a single column. Default carries a literal
// value applied on INSERT when the column is omitted; Check carries a
// single comparison (column vs literal) evaluated against the candidate
// row on INSERT/UPDATE.
type Constraint struct {
	Kind    ConstraintKind
	Default any    // used when Kind == Default
	CheckOp CmpOp  // used when Kind == Check
	CheckOn any    // used when Kind == Check: literal to compare against
}

// Column describes one table column: its name, type, and the constraints
// declared on it in source order.
type Column struct {
	Name        string
	Type        ColumnType
	Constraints []Constraint
}

// NotNull reports whether this column carries a NOT NULL constraint.
func (c Column) NotNull() bool {
	for _, cst := range c.Constraints {
		if cst.Kind == NotNull {
			return true
		}
	}
	return false
}

// DefaultValue returns the column's DEFAULT literal, if any.
func (c Column) DefaultValue() (any, bool) {
	for _, cst := range c.Constraints {
		if cst.Kind == Default {
			return cst.Default, true
		}
	}
	return nil, false
}

// IndexDescriptor records that a hash index exists over a column. Bucket
// count and load-factor state live in the index's own sidecar file
// (internal/hashindex), not here.
type IndexDescriptor struct {
	Name   string
	Column string
}

// Schema is the ordered column list plus declared indexes for a table.
type Schema struct {
	Columns []Column
	Indexes []IndexDescriptor
}

// ColumnIndex returns the ordinal position of name, or -1 if absent.
func (s Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// NormalizeLiterals coerces every Default/CheckOn literal to the runtime
// type its column declares. JSON round-trips every number as float64, so
// a Constraint decoded from a catalog sidecar needs this before it can be
// compared or encoded against an Integer column again.
func (s Schema) NormalizeLiterals() {
	for i, c := range s.Columns {
		for j, cst := range c.Constraints {
			s.Columns[i].Constraints[j].Default = coerceLiteral(c.Type, cst.Default)
			s.Columns[i].Constraints[j].CheckOn = coerceLiteral(c.Type, cst.CheckOn)
		}
	}
}

func coerceLiteral(t ColumnType, v any) any {
	switch t {
	case Integer:
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	case Float:
		if i, ok := v.(int64); ok {
			return float64(i)
		}
	}
	return v
}

// RowWidth is the fixed byte width of one encoded row under this schema:
// the null bitmask plus every column's fixed cell width.
func (s Schema) RowWidth() int {
	w := (len(s.Columns) + 7) / 8
	for _, c := range s.Columns {
		w += CellWidth(c.Type)
	}
	return w
}

// CellWidth is the fixed on-disk width of one cell of the given type.
func CellWidth(t ColumnType) int {
	switch t {
	case Integer, Float:
		return 8
	case String:
		return 256
	default:
		return 0
	}
}
