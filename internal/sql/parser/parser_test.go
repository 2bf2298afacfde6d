package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daniilsunyaev/yarrd/internal/sql/ast"
	"github.com/daniilsunyaev/yarrd/internal/types"
)

func TestParse_CreateTable(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE users (id INTEGER NOT NULL, name STRING DEFAULT "anon")`)
	require.NoError(t, err)
	ct, ok := stmt.(ast.CreateTableStmt)
	require.True(t, ok)
	require.Equal(t, "users", ct.Table)
	require.Len(t, ct.Columns, 2)
	require.Equal(t, types.Integer, ct.Columns[0].Type)
	require.Equal(t, types.NotNull, ct.Columns[0].Constraints[0].Kind)
	require.Equal(t, "anon", ct.Columns[1].Constraints[0].Default)
}

func TestParse_InsertAndSelectWhere(t *testing.T) {
	stmt, err := Parse(`INSERT INTO users (id, name) VALUES (1, "alice")`)
	require.NoError(t, err)
	ins := stmt.(ast.InsertStmt)
	require.Equal(t, []string{"id", "name"}, ins.Columns)
	require.Equal(t, []any{int64(1), "alice"}, ins.Values)

	stmt2, err := Parse(`SELECT * FROM users WHERE id = 1`)
	require.NoError(t, err)
	sel := stmt2.(ast.SelectStmt)
	require.Equal(t, "users", sel.Table)
	require.NotNil(t, sel.Where)
	require.Equal(t, types.Eq, sel.Where.Op)
	require.Equal(t, int64(1), sel.Where.Value)
}

func TestParse_SelectIsNull(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM users WHERE name IS NOT NULL`)
	require.NoError(t, err)
	sel := stmt.(ast.SelectStmt)
	require.Equal(t, types.IsNotNull, sel.Where.Op)
}

func TestParse_UpdateDelete(t *testing.T) {
	stmt, err := Parse(`UPDATE users SET name = "bob" WHERE id = 2`)
	require.NoError(t, err)
	upd := stmt.(ast.UpdateStmt)
	require.Equal(t, "bob", upd.Sets[0].Value)

	stmt2, err := Parse(`DELETE FROM users WHERE id = 2`)
	require.NoError(t, err)
	del := stmt2.(ast.DeleteStmt)
	require.Equal(t, "users", del.Table)
}

func TestParse_AlterTable(t *testing.T) {
	stmt, err := Parse(`ALTER TABLE users RENAME TO people`)
	require.NoError(t, err)
	alt := stmt.(ast.AlterTableStmt)
	require.Equal(t, ast.AlterRenameTable, alt.Kind)
	require.Equal(t, "people", alt.NewName)

	stmt2, err := Parse(`ALTER TABLE users ADD COLUMN age INTEGER`)
	require.NoError(t, err)
	alt2 := stmt2.(ast.AlterTableStmt)
	require.Equal(t, ast.AlterAddColumn, alt2.Kind)
	require.Equal(t, "age", alt2.AddColumn.Name)
}

func TestParse_CreateIndexAndVacuum(t *testing.T) {
	stmt, err := Parse(`CREATE INDEX ON users (id)`)
	require.NoError(t, err)
	ci := stmt.(ast.CreateIndexStmt)
	require.Equal(t, "users", ci.Table)
	require.Equal(t, "id", ci.Column)

	stmt2, err := Parse(`VACUUM users`)
	require.NoError(t, err)
	require.Equal(t, ast.VacuumStmt{Table: "users"}, stmt2)
}

func TestParse_DropIndex(t *testing.T) {
	stmt, err := Parse(`DROP INDEX ON users (id)`)
	require.NoError(t, err)
	di := stmt.(ast.DropIndexStmt)
	require.Equal(t, "users", di.Table)
	require.Equal(t, "id", di.Column)
}
