// Package table implements the row-level storage engine: fixed-width
// slots laid across pages cached by a Pager, with slot liveness tracked
// at the table level (free-list + max row id) rather than in the page
// bytes themselves.
package table

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/daniilsunyaev/yarrd/internal/alias/util"
	"github.com/daniilsunyaev/yarrd/internal/catalog"
	"github.com/daniilsunyaev/yarrd/internal/hashindex"
	"github.com/daniilsunyaev/yarrd/internal/page"
	"github.com/daniilsunyaev/yarrd/internal/pager"
	"github.com/daniilsunyaev/yarrd/internal/serialize"
	"github.com/daniilsunyaev/yarrd/internal/types"
)

var (
	ErrTableNotFound   = errors.New("table: no such table")
	ErrColumnNotFound  = errors.New("table: no such column")
	ErrNotNull         = errors.New("table: column violates NOT NULL constraint")
	ErrCheckFailed     = errors.New("table: value violates CHECK constraint")
	ErrRowNotFound     = errors.New("table: row not found")
	ErrDuplicateColumn = errors.New("table: duplicate column name")
)

// Row pairs a live row's storage slot id with its decoded values.
type Row struct {
	SlotID uint64
	Values []any
}

// Table is one open table: its schema, its data file's page cache, and
// its column hash indexes.
type Table struct {
	Name     string
	Schema   types.Schema
	dataPath string
	metaPath string

	pager    *pager.Pager
	rowWidth int
	slotsPer int // rows per page

	maxRowID uint64
	freeList []uint64

	indexes map[string]*hashindex.HashIndex // column name -> index

	log *slog.Logger
}

// Create makes a new, empty table backed by files under dir.
func Create(dir, name string, schema types.Schema, cacheSize int) (*Table, error) {
	dataPath := filepath.Join(dir, name+".tbl")
	metaPath := catalog.SidecarPath(dataPath)

	if catalog.Exists(metaPath) {
		return nil, fmt.Errorf("table: %s already exists", name)
	}
	if err := page.ValidateRowWidth(schema.RowWidth()); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("table: create data file: %w", err)
	}

	p, err := pager.New(f, page.Size, cacheSize)
	if err != nil {
		util.CloseFileFunc(f)
		return nil, err
	}

	t := &Table{
		Name:     name,
		Schema:   schema,
		dataPath: dataPath,
		metaPath: metaPath,
		pager:    p,
		rowWidth: schema.RowWidth(),
		slotsPer: page.NumSlots(schema.RowWidth()),
		indexes:  make(map[string]*hashindex.HashIndex),
		log:      slog.Default().With("component", "table", "name", name),
	}

	for _, idx := range schema.Indexes {
		hi, err := hashindex.Create(t.indexPath(idx.Column))
		if err != nil {
			return nil, err
		}
		t.indexes[idx.Column] = hi
	}

	if err := t.saveMeta(); err != nil {
		return nil, err
	}
	return t, nil
}

// Open reopens a table previously created with Create.
func Open(dir, name string, cacheSize int) (*Table, error) {
	dataPath := filepath.Join(dir, name+".tbl")
	metaPath := catalog.SidecarPath(dataPath)

	meta, err := catalog.Read(metaPath)
	if err != nil {
		return nil, ErrTableNotFound
	}

	f, err := os.OpenFile(dataPath, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("table: open data file: %w", err)
	}

	p, err := pager.New(f, page.Size, cacheSize)
	if err != nil {
		util.CloseFileFunc(f)
		return nil, err
	}

	t := &Table{
		Name:     name,
		Schema:   meta.Schema,
		dataPath: dataPath,
		metaPath: metaPath,
		pager:    p,
		rowWidth: meta.Schema.RowWidth(),
		slotsPer: page.NumSlots(meta.Schema.RowWidth()),
		maxRowID: meta.MaxRowID,
		freeList: append([]uint64(nil), meta.FreeList...),
		indexes:  make(map[string]*hashindex.HashIndex),
		log:      slog.Default().With("component", "table", "name", name),
	}

	for _, idx := range meta.Schema.Indexes {
		hi, err := hashindex.Open(t.indexPath(idx.Column))
		if err != nil {
			return nil, err
		}
		t.indexes[idx.Column] = hi
	}
	return t, nil
}

func (t *Table) indexPath(column string) string {
	return t.dataPath + "." + column + ".idx"
}

func pageSlotsFor(rowWidth int) int {
	return page.NumSlots(rowWidth)
}

func newPagerFor(f *os.File) (*pager.Pager, error) {
	return pager.New(f, page.Size, pager.DefaultCapacity)
}

func (t *Table) saveMeta() error {
	return catalog.Write(t.metaPath, &catalog.TableMeta{
		Name:     t.Name,
		Schema:   t.Schema,
		MaxRowID: t.maxRowID,
		FreeList: t.freeList,
	})
}

func (t *Table) slotLocation(slotID uint64) (pageID uint64, offset int) {
	pageID = slotID / uint64(t.slotsPer)
	offset = int(slotID % uint64(t.slotsPer))
	return
}

func (t *Table) readSlot(slotID uint64) ([]byte, error) {
	pageID, offset := t.slotLocation(slotID)
	buf, err := t.pager.Get(pageID)
	if err != nil {
		return nil, err
	}
	out := make([]byte, t.rowWidth)
	copy(out, page.SlotIn(buf, t.rowWidth, offset))
	return out, nil
}

func (t *Table) writeSlot(slotID uint64, row []byte) error {
	pageID, offset := t.slotLocation(slotID)
	buf, err := t.pager.Get(pageID)
	if err != nil {
		return err
	}
	copy(page.SlotIn(buf, t.rowWidth, offset), row)
	t.pager.MarkDirty(pageID)
	return nil
}

func (t *Table) isFree(slotID uint64) bool {
	for _, id := range t.freeList {
		if id == slotID {
			return true
		}
	}
	return false
}

// validate applies NOT NULL / DEFAULT / CHECK constraints and returns the
// finalized value slice ready to encode.
func (t *Table) validate(values []any) ([]any, error) {
	if len(values) != len(t.Schema.Columns) {
		return nil, fmt.Errorf("table: expected %d values, got %d", len(t.Schema.Columns), len(values))
	}
	out := make([]any, len(values))
	copy(out, values)

	for i, col := range t.Schema.Columns {
		if out[i] == nil {
			if def, ok := col.DefaultValue(); ok {
				out[i] = def
			}
		}
		if out[i] == nil && col.NotNull() {
			return nil, fmt.Errorf("%w: column %q", ErrNotNull, col.Name)
		}
		for _, c := range col.Constraints {
			if c.Kind != types.Check || out[i] == nil {
				continue
			}
			ok, err := types.Eval(types.Predicate{Column: col.Name, Op: c.CheckOp, Value: c.CheckOn}, out[i])
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%w: column %q", ErrCheckFailed, col.Name)
			}
		}
	}
	return out, nil
}

// Insert validates and appends a new row, maintaining every column index.
// If index maintenance fails partway through, already-applied index
// entries for this row are rolled back before the error is returned.
func (t *Table) Insert(values []any) (uint64, error) {
	finalValues, err := t.validate(values)
	if err != nil {
		return 0, err
	}

	buf, err := serialize.WriteRow(t.Schema, finalValues)
	if err != nil {
		return 0, err
	}

	slotID := t.allocateSlot()
	if err := t.writeSlot(slotID, buf); err != nil {
		return 0, err
	}

	applied := make([]string, 0, len(t.indexes))
	for col, hi := range t.indexes {
		ci := t.Schema.ColumnIndex(col)
		if finalValues[ci] == nil {
			continue
		}
		if err := hi.Insert(finalValues[ci], slotID); err != nil {
			for _, done := range applied {
				_ = t.indexes[done].Delete(finalValues[t.Schema.ColumnIndex(done)], slotID)
			}
			t.releaseSlot(slotID)
			return 0, fmt.Errorf("table: index %q insert: %w", col, err)
		}
		applied = append(applied, col)
	}

	if err := t.saveMeta(); err != nil {
		return 0, err
	}
	return slotID, nil
}

func (t *Table) allocateSlot() uint64 {
	if n := len(t.freeList); n > 0 {
		id := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		return id
	}
	id := t.maxRowID
	t.maxRowID++
	return id
}

func (t *Table) releaseSlot(slotID uint64) {
	t.freeList = append(t.freeList, slotID)
}

// Scan iterates every live row in ascending slot order and calls fn for
// each. Iteration stops early if fn returns an error.
func (t *Table) Scan(fn func(Row) error) error {
	for slot := uint64(0); slot < t.maxRowID; slot++ {
		if t.isFree(slot) {
			continue
		}
		buf, err := t.readSlot(slot)
		if err != nil {
			return err
		}
		values, err := serialize.ReadRow(t.Schema, buf)
		if err != nil {
			return err
		}
		if err := fn(Row{SlotID: slot, Values: values}); err != nil {
			return err
		}
	}
	return nil
}

// Select returns every live row matching pred, using a column's hash
// index when pred is an equality check on an indexed column.
func (t *Table) Select(pred *types.Predicate) ([]Row, error) {
	if pred != nil && pred.Op == types.Eq {
		if hi, ok := t.indexes[pred.Column]; ok {
			return t.selectViaIndex(hi, pred)
		}
	}

	var out []Row
	err := t.Scan(func(r Row) error {
		if pred == nil {
			out = append(out, r)
			return nil
		}
		ci := t.Schema.ColumnIndex(pred.Column)
		if ci < 0 {
			return fmt.Errorf("%w: %q", ErrColumnNotFound, pred.Column)
		}
		ok, err := types.Eval(*pred, r.Values[ci])
		if err != nil {
			return err
		}
		if ok {
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (t *Table) selectViaIndex(hi *hashindex.HashIndex, pred *types.Predicate) ([]Row, error) {
	ci := t.Schema.ColumnIndex(pred.Column)
	slotIDs, err := hi.Lookup(pred.Value)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, slot := range slotIDs {
		if t.isFree(slot) {
			continue
		}
		buf, err := t.readSlot(slot)
		if err != nil {
			return nil, err
		}
		values, err := serialize.ReadRow(t.Schema, buf)
		if err != nil {
			return nil, err
		}
		// Guard against FNV-1a collisions: the index only stores a hash,
		// so confirm true equality against the decoded row before
		// including it in the result.
		if eq, _ := types.Eval(types.Predicate{Column: pred.Column, Op: types.Eq, Value: pred.Value}, values[ci]); eq {
			out = append(out, Row{SlotID: slot, Values: values})
		}
	}
	return out, nil
}

// Update rewrites every row matching pred with the columns named in
// updates, maintaining indexes by deleting the old entry before writing
// the new row bytes and inserting the new entry.
func (t *Table) Update(pred *types.Predicate, updates map[string]any) (int, error) {
	rows, err := t.Select(pred)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		newValues := append([]any(nil), row.Values...)
		for col, v := range updates {
			ci := t.Schema.ColumnIndex(col)
			if ci < 0 {
				return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, col)
			}
			newValues[ci] = v
		}
		finalValues, err := t.validate(newValues)
		if err != nil {
			return 0, err
		}

		for col, hi := range t.indexes {
			ci := t.Schema.ColumnIndex(col)
			if row.Values[ci] == nil {
				continue
			}
			if err := hi.Delete(row.Values[ci], row.SlotID); err != nil && !errors.Is(err, hashindex.ErrNotFound) {
				return 0, err
			}
		}

		buf, err := serialize.WriteRow(t.Schema, finalValues)
		if err != nil {
			return 0, err
		}
		if err := t.writeSlot(row.SlotID, buf); err != nil {
			return 0, err
		}

		for col, hi := range t.indexes {
			ci := t.Schema.ColumnIndex(col)
			if finalValues[ci] == nil {
				continue
			}
			if err := hi.Insert(finalValues[ci], row.SlotID); err != nil {
				return 0, err
			}
		}
	}

	if len(rows) > 0 {
		if err := t.saveMeta(); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// Delete removes every row matching pred, releasing its slot and
// removing its index entries.
func (t *Table) Delete(pred *types.Predicate) (int, error) {
	rows, err := t.Select(pred)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		for col, hi := range t.indexes {
			ci := t.Schema.ColumnIndex(col)
			if row.Values[ci] == nil {
				continue
			}
			if err := hi.Delete(row.Values[ci], row.SlotID); err != nil && !errors.Is(err, hashindex.ErrNotFound) {
				return 0, err
			}
		}
		t.releaseSlot(row.SlotID)
	}

	if len(rows) > 0 {
		if err := t.saveMeta(); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// Drop closes the table and removes its data file, sidecar, and every
// index file from disk.
func (t *Table) Drop() error {
	for col, hi := range t.indexes {
		hi.Close()
		os.Remove(t.indexPath(col) + ".hdat")
		os.Remove(t.indexPath(col) + ".hmeta.json")
	}
	t.pager.Close()
	os.Remove(t.dataPath)
	return os.Remove(t.metaPath)
}

// Close flushes and closes the table's page cache and every column
// index, and persists final metadata.
func (t *Table) Close() error {
	if err := t.saveMeta(); err != nil {
		return err
	}
	for _, hi := range t.indexes {
		if err := hi.Close(); err != nil {
			return err
		}
	}
	return t.pager.Close()
}
