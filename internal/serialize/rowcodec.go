// Package serialize converts between decoded row values ([]any) and their
// fixed-width on-disk representation: a null bitmask followed by
// fixed-width cells in column-declaration order.
package serialize

import (
	"errors"
	"math"

	"github.com/daniilsunyaev/yarrd/internal/alias/bx"
	"github.com/daniilsunyaev/yarrd/internal/types"
)

var (
	ErrSchemaMismatch = errors.New("serialize: value count does not match schema")
	ErrTypeMismatch   = errors.New("serialize: value type does not match column type")
	ErrStringTooLong  = errors.New("serialize: string exceeds 255 bytes")
	ErrRowTooShort    = errors.New("serialize: buffer too short to decode row")
)

// nullBitmaskSize is ceil(numCols/8).
func nullBitmaskSize(numCols int) int {
	return (numCols + 7) / 8
}

// WriteRow encodes values into a schema.RowWidth()-byte buffer. The null
// bitmask uses bit=1 to mean NULL and bit=0 to mean "column has a value",
// so it starts all-ones and each non-null column clears its bit.
func WriteRow(s types.Schema, values []any) ([]byte, error) {
	if len(values) != len(s.Columns) {
		return nil, ErrSchemaMismatch
	}

	buf := make([]byte, s.RowWidth())
	nb := nullBitmaskSize(len(s.Columns))
	for i := 0; i < nb; i++ {
		buf[i] = 0xFF
	}
	off := nb

	for i, col := range s.Columns {
		v := values[i]
		if v == nil {
			off += types.CellWidth(col.Type)
			continue
		}
		buf[i/8] &^= 1 << uint(i%8)

		cell := buf[off : off+types.CellWidth(col.Type)]
		if err := writeCell(cell, col.Type, v); err != nil {
			return nil, err
		}
		off += types.CellWidth(col.Type)
	}
	return buf, nil
}

// ReadRow decodes a schema.RowWidth()-byte buffer back into values, with
// nil standing in for NULL cells.
func ReadRow(s types.Schema, buf []byte) ([]any, error) {
	if len(buf) < s.RowWidth() {
		return nil, ErrRowTooShort
	}

	nb := nullBitmaskSize(len(s.Columns))
	off := nb
	out := make([]any, len(s.Columns))

	for i, col := range s.Columns {
		width := types.CellWidth(col.Type)
		if !IsNull(buf, i) {
			v, err := readCell(buf[off:off+width], col.Type)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		off += width
	}
	return out, nil
}

// IsNull reports whether column i is NULL in an encoded row buffer.
func IsNull(buf []byte, col int) bool {
	return (buf[col/8]>>uint(col%8))&1 == 1
}

func writeCell(cell []byte, t types.ColumnType, v any) error {
	switch t {
	case types.Integer:
		x, ok := asInt64(v)
		if !ok {
			return ErrTypeMismatch
		}
		bx.PutU64(cell, uint64(x))
	case types.Float:
		x, ok := asFloat64(v)
		if !ok {
			return ErrTypeMismatch
		}
		bx.PutU64(cell, math.Float64bits(x))
	case types.String:
		s, ok := v.(string)
		if !ok {
			return ErrTypeMismatch
		}
		if len(s) > 255 {
			return ErrStringTooLong
		}
		cell[0] = byte(len(s))
		copy(cell[1:], s)
	default:
		return ErrTypeMismatch
	}
	return nil
}

func readCell(cell []byte, t types.ColumnType) (any, error) {
	switch t {
	case types.Integer:
		return int64(bx.U64(cell)), nil
	case types.Float:
		return math.Float64frombits(bx.U64(cell)), nil
	case types.String:
		n := int(cell[0])
		if n > 255 || 1+n > len(cell) {
			return nil, ErrRowTooShort
		}
		return string(cell[1 : 1+n]), nil
	default:
		return nil, ErrTypeMismatch
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		return 0, false
	}
}
