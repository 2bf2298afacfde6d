package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daniilsunyaev/yarrd/internal/types"
)

func testSchema() types.Schema {
	return types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.Integer, Constraints: []types.Constraint{{Kind: types.NotNull}}},
		{Name: "name", Type: types.String},
	}}
}

func TestTable_InsertAndSelect(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(dir, "users", testSchema(), 4)
	require.NoError(t, err)
	defer tb.Close()

	id, err := tb.Insert([]any{int64(1), "alice"})
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	rows, err := tb.Select(nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, []any{int64(1), "alice"}, rows[0].Values)
}

func TestTable_InsertViolatesNotNull(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(dir, "users", testSchema(), 4)
	require.NoError(t, err)
	defer tb.Close()

	_, err = tb.Insert([]any{nil, "bob"})
	require.ErrorIs(t, err, ErrNotNull)
}

func TestTable_UpdateAndDelete(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(dir, "users", testSchema(), 4)
	require.NoError(t, err)
	defer tb.Close()

	_, err = tb.Insert([]any{int64(1), "alice"})
	require.NoError(t, err)
	_, err = tb.Insert([]any{int64(2), "bob"})
	require.NoError(t, err)

	pred := &types.Predicate{Column: "id", Op: types.Eq, Value: int64(1)}
	n, err := tb.Update(pred, map[string]any{"name": "alicia"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rows, err := tb.Select(pred)
	require.NoError(t, err)
	require.Equal(t, "alicia", rows[0].Values[1])

	n, err = tb.Delete(pred)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rows, err = tb.Select(nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(2), rows[0].Values[0])
}

func TestTable_ReopenPreservesRows(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(dir, "users", testSchema(), 4)
	require.NoError(t, err)
	_, err = tb.Insert([]any{int64(1), "alice"})
	require.NoError(t, err)
	require.NoError(t, tb.Close())

	tb2, err := Open(dir, "users", 4)
	require.NoError(t, err)
	defer tb2.Close()

	rows, err := tb2.Select(nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, []any{int64(1), "alice"}, rows[0].Values)
}

func TestTable_SelectUsesIndex(t *testing.T) {
	dir := t.TempDir()
	s := testSchema()
	s.Indexes = []types.IndexDescriptor{{Name: "idx_id", Column: "id"}}

	tb, err := Create(dir, "users", s, 4)
	require.NoError(t, err)
	defer tb.Close()

	_, err = tb.Insert([]any{int64(10), "a"})
	require.NoError(t, err)
	_, err = tb.Insert([]any{int64(20), "b"})
	require.NoError(t, err)

	rows, err := tb.Select(&types.Predicate{Column: "id", Op: types.Eq, Value: int64(20)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "b", rows[0].Values[1])
}

func TestTable_VacuumCompactsFreeSlots(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(dir, "users", testSchema(), 4)
	require.NoError(t, err)
	defer tb.Close()

	for i := int64(0); i < 5; i++ {
		_, err := tb.Insert([]any{i, "n"})
		require.NoError(t, err)
	}
	_, err = tb.Delete(&types.Predicate{Column: "id", Op: types.Lt, Value: int64(3)})
	require.NoError(t, err)

	require.NoError(t, tb.Vacuum())

	rows, err := tb.Select(nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.True(t, r.SlotID < 2)
	}
}
