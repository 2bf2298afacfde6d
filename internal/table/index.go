package table

import (
	"errors"
	"fmt"
	"os"

	"github.com/daniilsunyaev/yarrd/internal/hashindex"
	"github.com/daniilsunyaev/yarrd/internal/types"
)

var ErrIndexExists = errors.New("table: index already exists on column")

// CreateIndex builds a fresh hash index over column from the table's
// current live rows.
func (t *Table) CreateIndex(name, column string) error {
	ci := t.Schema.ColumnIndex(column)
	if ci < 0 {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	if _, ok := t.indexes[column]; ok {
		return fmt.Errorf("%w: %q", ErrIndexExists, column)
	}

	hi, err := hashindex.Create(t.indexPath(column))
	if err != nil {
		return err
	}
	if err := t.Scan(func(r Row) error {
		if r.Values[ci] == nil {
			return nil
		}
		return hi.Insert(r.Values[ci], r.SlotID)
	}); err != nil {
		return err
	}

	t.indexes[column] = hi
	t.Schema.Indexes = append(t.Schema.Indexes, types.IndexDescriptor{Name: name, Column: column})
	return t.saveMeta()
}

// DropIndex removes the hash index over column. It returns an error if
// the column has no index.
func (t *Table) DropIndex(column string) error {
	hi, ok := t.indexes[column]
	if !ok {
		return fmt.Errorf("table: no index on column %q", column)
	}
	hi.Close()
	os.Remove(t.indexPath(column) + ".hdat")
	os.Remove(t.indexPath(column) + ".hmeta.json")
	delete(t.indexes, column)

	var kept []types.IndexDescriptor
	for _, d := range t.Schema.Indexes {
		if d.Column != column {
			kept = append(kept, d)
		}
	}
	t.Schema.Indexes = kept
	return t.saveMeta()
}
