package executor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daniilsunyaev/yarrd/internal/engine"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	require.NoError(t, engine.CreateDatabase(dir))
	db, err := engine.Connect(dir, 4)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestExecutor_CreateInsertSelect(t *testing.T) {
	e := newTestExecutor(t)

	_, err := e.ExecSQL(`CREATE TABLE users (id INTEGER NOT NULL, name STRING)`)
	require.NoError(t, err)

	_, err = e.ExecSQL(`INSERT INTO users (id, name) VALUES (1, "alice")`)
	require.NoError(t, err)
	_, err = e.ExecSQL(`INSERT INTO users (id, name) VALUES (2, "bob")`)
	require.NoError(t, err)

	res, err := e.ExecSQL(`SELECT * FROM users WHERE id = 2`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "bob", res.Rows[0][1])
}

func TestExecutor_UpdateDeleteVacuum(t *testing.T) {
	e := newTestExecutor(t)
	_, err := e.ExecSQL(`CREATE TABLE t (id INTEGER, v STRING)`)
	require.NoError(t, err)
	_, err = e.ExecSQL(`INSERT INTO t (id, v) VALUES (1, "a")`)
	require.NoError(t, err)
	_, err = e.ExecSQL(`INSERT INTO t (id, v) VALUES (2, "b")`)
	require.NoError(t, err)

	res, err := e.ExecSQL(`UPDATE t SET v = "z" WHERE id = 1`)
	require.NoError(t, err)
	require.Equal(t, 1, res.AffectedRows)

	res, err = e.ExecSQL(`DELETE FROM t WHERE id = 2`)
	require.NoError(t, err)
	require.Equal(t, 1, res.AffectedRows)

	_, err = e.ExecSQL(`VACUUM t`)
	require.NoError(t, err)

	res, err = e.ExecSQL(`SELECT * FROM t`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "z", res.Rows[0][1])
}

func TestExecutor_NullComparisonIsFalse(t *testing.T) {
	e := newTestExecutor(t)
	_, err := e.ExecSQL(`CREATE TABLE t (id INTEGER, v STRING)`)
	require.NoError(t, err)
	_, err = e.ExecSQL(`INSERT INTO t (id, v) VALUES (1, NULL)`)
	require.NoError(t, err)

	res, err := e.ExecSQL(`SELECT * FROM t WHERE v = "anything"`)
	require.NoError(t, err)
	require.Empty(t, res.Rows)

	res, err = e.ExecSQL(`SELECT * FROM t WHERE v IS NULL`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
}

func TestExecutor_AlterAddAndDropColumn(t *testing.T) {
	e := newTestExecutor(t)
	_, err := e.ExecSQL(`CREATE TABLE t (id INTEGER)`)
	require.NoError(t, err)
	_, err = e.ExecSQL(`INSERT INTO t (id) VALUES (1)`)
	require.NoError(t, err)

	_, err = e.ExecSQL(`ALTER TABLE t ADD COLUMN nick STRING`)
	require.NoError(t, err)

	res, err := e.ExecSQL(`SELECT * FROM t`)
	require.NoError(t, err)
	require.Len(t, res.Columns, 2)

	_, err = e.ExecSQL(`ALTER TABLE t DROP COLUMN nick`)
	require.NoError(t, err)

	res, err = e.ExecSQL(`SELECT * FROM t`)
	require.NoError(t, err)
	require.Len(t, res.Columns, 1)
}
