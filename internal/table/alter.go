package table

import (
	"fmt"
	"os"

	"github.com/daniilsunyaev/yarrd/internal/hashindex"
	"github.com/daniilsunyaev/yarrd/internal/page"
	"github.com/daniilsunyaev/yarrd/internal/serialize"
	"github.com/daniilsunyaev/yarrd/internal/types"
)

// AlterRenameColumn updates the schema in place; row bytes are unaffected
// since column order and width do not change.
func (t *Table) AlterRenameColumn(oldName, newName string) error {
	ci := t.Schema.ColumnIndex(oldName)
	if ci < 0 {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, oldName)
	}
	t.Schema.Columns[ci].Name = newName
	for i := range t.Schema.Indexes {
		if t.Schema.Indexes[i].Column == oldName {
			t.Schema.Indexes[i].Column = newName
		}
	}
	if hi, ok := t.indexes[oldName]; ok {
		delete(t.indexes, oldName)
		t.indexes[newName] = hi
	}
	return t.saveMeta()
}

// AlterAddConstraint validates every live row against the new constraint
// before committing it to the schema.
func (t *Table) AlterAddConstraint(colName string, c types.Constraint) error {
	ci := t.Schema.ColumnIndex(colName)
	if ci < 0 {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, colName)
	}

	err := t.Scan(func(r Row) error {
		v := r.Values[ci]
		if v == nil {
			if c.Kind == types.NotNull {
				return fmt.Errorf("%w: column %q", ErrNotNull, colName)
			}
			return nil
		}
		if c.Kind == types.Check {
			ok, err := types.Eval(types.Predicate{Column: colName, Op: c.CheckOp, Value: c.CheckOn}, v)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: column %q", ErrCheckFailed, colName)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	t.Schema.Columns[ci].Constraints = append(t.Schema.Columns[ci].Constraints, c)
	return t.saveMeta()
}

// AlterDropConstraint removes the first constraint of the given kind on
// colName.
func (t *Table) AlterDropConstraint(colName string, kind types.ConstraintKind) error {
	ci := t.Schema.ColumnIndex(colName)
	if ci < 0 {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, colName)
	}
	cs := t.Schema.Columns[ci].Constraints
	for i, c := range cs {
		if c.Kind == kind {
			t.Schema.Columns[ci].Constraints = append(cs[:i], cs[i+1:]...)
			return t.saveMeta()
		}
	}
	return nil
}

// AlterAddColumn widens every row with a new trailing column, rewriting
// the entire data file since row width changes.
func (t *Table) AlterAddColumn(col types.Column, defaultValue any) error {
	if t.Schema.ColumnIndex(col.Name) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, col.Name)
	}
	newSchema := types.Schema{
		Columns: append(append([]types.Column(nil), t.Schema.Columns...), col),
		Indexes: t.Schema.Indexes,
	}
	return t.rewriteWithSchema(newSchema, func(values []any) []any {
		return append(append([]any(nil), values...), defaultValue)
	})
}

// AlterDropColumn narrows every row, dropping the named column, and
// removes any hash index declared over it.
func (t *Table) AlterDropColumn(name string) error {
	ci := t.Schema.ColumnIndex(name)
	if ci < 0 {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}

	newCols := append(append([]types.Column(nil), t.Schema.Columns[:ci]...), t.Schema.Columns[ci+1:]...)
	var newIdx []types.IndexDescriptor
	for _, d := range t.Schema.Indexes {
		if d.Column != name {
			newIdx = append(newIdx, d)
		}
	}
	newSchema := types.Schema{Columns: newCols, Indexes: newIdx}

	if hi, ok := t.indexes[name]; ok {
		if err := hi.Close(); err != nil {
			return err
		}
		delete(t.indexes, name)
		os.Remove(t.indexPath(name) + ".hdat")
		os.Remove(t.indexPath(name) + ".hmeta.json")
	}

	return t.rewriteWithSchema(newSchema, func(values []any) []any {
		return append(append([]any(nil), values[:ci]...), values[ci+1:]...)
	})
}

// AlterRenameTable renames the table's data file, sidecar and every
// index file, updating in-memory state to match.
func (t *Table) AlterRenameTable(dir, newName string) error {
	oldData, oldMeta := t.dataPath, t.metaPath
	newData := dir + "/" + newName + ".tbl"
	newMeta := newData + ".meta.json"

	oldIndexPaths := make(map[string]string, len(t.indexes))
	for col := range t.indexes {
		oldIndexPaths[col] = t.indexPath(col)
	}

	for col, hi := range t.indexes {
		if err := hi.Close(); err != nil {
			return err
		}
		delete(t.indexes, col)
	}

	if err := t.pager.Close(); err != nil {
		return err
	}
	if err := os.Rename(oldData, newData); err != nil {
		return err
	}
	if err := os.Rename(oldMeta, newMeta); err != nil {
		return err
	}

	t.dataPath = newData
	for col, oldPath := range oldIndexPaths {
		newPath := t.indexPath(col)
		if err := os.Rename(oldPath+".hdat", newPath+".hdat"); err != nil {
			return err
		}
		if err := os.Rename(oldPath+".hmeta.json", newPath+".hmeta.json"); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(newData, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	p, err := newPagerFor(f)
	if err != nil {
		return err
	}
	t.pager = p

	for col := range oldIndexPaths {
		hi, err := hashindex.Open(t.indexPath(col))
		if err != nil {
			return err
		}
		t.indexes[col] = hi
	}

	t.Name = newName
	t.metaPath = newMeta
	return t.saveMeta()
}

// rewriteWithSchema rebuilds the table's data file under newSchema,
// transforming every live row's value slice with transform, then
// replaces the table's on-disk state atomically.
func (t *Table) rewriteWithSchema(newSchema types.Schema, transform func([]any) []any) error {
	type liveRow struct {
		values []any
	}
	var rows []liveRow
	if err := t.Scan(func(r Row) error {
		rows = append(rows, liveRow{values: transform(r.Values)})
		return nil
	}); err != nil {
		return err
	}

	newRowWidth := newSchema.RowWidth()
	if err := page.ValidateRowWidth(newRowWidth); err != nil {
		return err
	}

	tmpPath := t.dataPath + ".rewrite"
	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	p, err := newPagerFor(f)
	if err != nil {
		return err
	}

	slotsPer := pageSlotsFor(newRowWidth)
	for i, r := range rows {
		buf, err := serialize.WriteRow(newSchema, r.values)
		if err != nil {
			p.Close()
			os.Remove(tmpPath)
			return err
		}
		slotID := uint64(i)
		pageID := slotID / uint64(slotsPer)
		offset := int(slotID % uint64(slotsPer))
		pbuf, err := p.Get(pageID)
		if err != nil {
			return err
		}
		copy(page.SlotIn(pbuf, newRowWidth, offset), buf)
		p.MarkDirty(pageID)
	}
	if err := p.Close(); err != nil {
		return err
	}

	if err := t.pager.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, t.dataPath); err != nil {
		return err
	}

	f2, err := os.OpenFile(t.dataPath, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	p2, err := newPagerFor(f2)
	if err != nil {
		return err
	}

	t.pager = p2
	t.Schema = newSchema
	t.rowWidth = newRowWidth
	t.slotsPer = slotsPer
	t.maxRowID = uint64(len(rows))
	t.freeList = nil

	// Slot ids were just densely renumbered, so every surviving column
	// index's (hash, slot) entries are stale; rebuild them against the
	// new ids before persisting.
	if err := t.rebuildIndexes(); err != nil {
		return err
	}

	return t.saveMeta()
}
