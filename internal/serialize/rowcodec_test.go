package serialize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daniilsunyaev/yarrd/internal/types"
)

func testSchema() types.Schema {
	return types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.Integer},
		{Name: "score", Type: types.Float},
		{Name: "name", Type: types.String},
	}}
}

func TestWriteReadRow_RoundTrip(t *testing.T) {
	s := testSchema()
	values := []any{int64(7), 3.5, "hello"}

	buf, err := WriteRow(s, values)
	require.NoError(t, err)
	require.Len(t, buf, s.RowWidth())

	got, err := ReadRow(s, buf)
	require.NoError(t, err)
	require.Equal(t, values, got)
}

func TestWriteReadRow_Nulls(t *testing.T) {
	s := testSchema()
	values := []any{int64(1), nil, nil}

	buf, err := WriteRow(s, values)
	require.NoError(t, err)

	require.True(t, IsNull(buf, 1))
	require.True(t, IsNull(buf, 2))
	require.False(t, IsNull(buf, 0))

	got, err := ReadRow(s, buf)
	require.NoError(t, err)
	require.Equal(t, int64(1), got[0])
	require.Nil(t, got[1])
	require.Nil(t, got[2])
}

func TestWriteRow_SchemaMismatch(t *testing.T) {
	s := testSchema()
	_, err := WriteRow(s, []any{int64(1)})
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestWriteRow_TypeMismatch(t *testing.T) {
	s := testSchema()
	_, err := WriteRow(s, []any{"not an int", 1.0, "x"})
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestWriteRow_NoIntFloatCoercion(t *testing.T) {
	s := testSchema()
	// score column is Float; passing an int64 must not silently coerce.
	_, err := WriteRow(s, []any{int64(1), int64(2), "x"})
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestWriteRow_StringTooLong(t *testing.T) {
	s := testSchema()
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	_, err := WriteRow(s, []any{int64(1), 1.0, string(long)})
	require.ErrorIs(t, err, ErrStringTooLong)
}
