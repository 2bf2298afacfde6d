package table

import (
	"os"

	"github.com/daniilsunyaev/yarrd/internal/hashindex"
)

// Vacuum compacts the table: live rows are packed into contiguous slots
// starting at zero, the free-list is emptied, and every hash index is
// rebuilt against the new slot ids by rewriteWithSchema.
func (t *Table) Vacuum() error {
	if len(t.freeList) == 0 {
		return nil
	}

	return t.rewriteWithSchema(t.Schema, func(values []any) []any {
		return values
	})
}

// rebuildIndexes drops and reconstructs every column hash index from the
// current (post-compaction) slot ids.
func (t *Table) rebuildIndexes() error {
	for col, hi := range t.indexes {
		if err := hi.Close(); err != nil {
			return err
		}
		os.Remove(t.indexPath(col) + ".hdat")
		os.Remove(t.indexPath(col) + ".hmeta.json")
		fresh, err := hashindex.Create(t.indexPath(col))
		if err != nil {
			return err
		}
		t.indexes[col] = fresh
	}

	return t.Scan(func(r Row) error {
		for col, hi := range t.indexes {
			ci := t.Schema.ColumnIndex(col)
			if r.Values[ci] == nil {
				continue
			}
			if err := hi.Insert(r.Values[ci], r.SlotID); err != nil {
				return err
			}
		}
		return nil
	})
}
