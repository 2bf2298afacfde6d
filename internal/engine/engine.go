// Package engine implements the Database facade: creating/dropping
// database directories, opening/creating/dropping tables within one, and
// guaranteeing a table's file is never opened by two live handles at
// once within a single process.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/daniilsunyaev/yarrd/internal/table"
	"github.com/daniilsunyaev/yarrd/internal/types"
)

var (
	ErrDatabaseExists   = errors.New("engine: database already exists")
	ErrDatabaseNotFound = errors.New("engine: database not found")
	ErrTableExists      = errors.New("engine: table already exists")
)

// Database is one open YARRD database directory: a set of table files
// plus their sidecar metadata, and the in-process handles currently open
// on them.
type Database struct {
	Dir       string
	cacheSize int
	tables    map[string]*table.Table
	log       *slog.Logger
}

// CreateDatabase makes a fresh, empty database directory.
func CreateDatabase(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return ErrDatabaseExists
	}
	return os.MkdirAll(dir, 0o755)
}

// DropDatabase removes a database directory and everything in it.
func DropDatabase(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return ErrDatabaseNotFound
	}
	return os.RemoveAll(dir)
}

// Connect opens a Database handle over an existing directory. cacheSize
// is the LRU page cache capacity a table's data pager gets when the
// table is created or opened through this handle. After VACUUM, ALTER
// TABLE ADD/DROP COLUMN or a table rename, the table's data pager is
// reopened with pager.DefaultCapacity instead.
func Connect(dir string, cacheSize int) (*Database, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, ErrDatabaseNotFound
	}
	return &Database{
		Dir:       dir,
		cacheSize: cacheSize,
		tables:    make(map[string]*table.Table),
		log:       slog.Default().With("component", "engine", "dir", dir),
	}, nil
}

// CreateTable creates a new table and opens it under this database.
func (d *Database) CreateTable(name string, schema types.Schema) (*table.Table, error) {
	if _, ok := d.tables[name]; ok {
		return nil, ErrTableExists
	}
	t, err := table.Create(d.Dir, name, schema, d.cacheSize)
	if err != nil {
		return nil, err
	}
	d.tables[name] = t
	return t, nil
}

// Table returns the open handle for name, opening it from disk on first
// use. The handle is cached for the lifetime of this Database so a
// table's file is never opened twice concurrently within one process.
func (d *Database) Table(name string) (*table.Table, error) {
	if t, ok := d.tables[name]; ok {
		return t, nil
	}
	t, err := table.Open(d.Dir, name, d.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("engine: open table %q: %w", name, err)
	}
	d.tables[name] = t
	return t, nil
}

// DropTable closes and deletes a table's files.
func (d *Database) DropTable(name string) error {
	t, err := d.Table(name)
	if err != nil {
		return err
	}
	delete(d.tables, name)
	return t.Drop()
}

// RenameTable renames an open table on disk and re-registers its handle
// under the new name.
func (d *Database) RenameTable(name, newName string) error {
	t, err := d.Table(name)
	if err != nil {
		return err
	}
	if err := t.AlterRenameTable(d.Dir, newName); err != nil {
		return err
	}
	delete(d.tables, name)
	d.tables[newName] = t
	return nil
}

// Close flushes and closes every table handle opened through this
// Database.
func (d *Database) Close() error {
	for name, t := range d.tables {
		if err := t.Close(); err != nil {
			return fmt.Errorf("engine: close table %q: %w", name, err)
		}
	}
	d.tables = make(map[string]*table.Table)
	return nil
}
