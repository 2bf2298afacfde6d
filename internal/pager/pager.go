// Package pager implements a fixed-capacity, single-threaded LRU page
// cache over one file handle. It is deliberately generic in page size so
// both table data files (4 KiB pages) and hash index bucket files (their
// own bucket-sized "pages") can share the same caching discipline —
// each index owns its own Pager instance, independent of the table's.
package pager

import (
	"container/list"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// DefaultCapacity is the default number of pages kept resident for table
// data, per the fixed cache-size requirement.
const DefaultCapacity = 16

// MinCapacity is the smallest cache size the LRU discipline can operate
// under — with fewer than two slots MRU-promotion and eviction collapse
// into the same slot.
const MinCapacity = 2

var (
	ErrCapacityTooSmall = errors.New("pager: capacity must be at least 2")
	ErrClosed           = errors.New("pager: use of closed pager")
)

type entry struct {
	id    uint64
	buf   []byte
	dirty bool
}

// Pager caches fixed-size pages read from and written to a single file,
// evicting the least recently used page when the cache is full and
// flushing it first if it is dirty.
type Pager struct {
	file     *os.File
	pageSize int
	capacity int

	order   *list.List               // MRU at Front, LRU at Back
	byID    map[uint64]*list.Element // pageID -> element wrapping *entry
	closed  bool
	log     *slog.Logger
}

// New wraps file with an LRU cache of capacity pages of pageSize bytes
// each.
func New(file *os.File, pageSize, capacity int) (*Pager, error) {
	if capacity < MinCapacity {
		return nil, ErrCapacityTooSmall
	}
	return &Pager{
		file:     file,
		pageSize: pageSize,
		capacity: capacity,
		order:    list.New(),
		byID:     make(map[uint64]*list.Element, capacity),
		log:      slog.Default().With("component", "pager", "file", file.Name()),
	}, nil
}

// Get returns the bytes for pageID, loading them from disk on a cache
// miss. The returned slice is owned by the pager; callers must copy out
// anything they intend to keep past the next Get call that could trigger
// eviction.
func (p *Pager) Get(pageID uint64) ([]byte, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if el, ok := p.byID[pageID]; ok {
		p.order.MoveToFront(el)
		return el.Value.(*entry).buf, nil
	}

	buf, err := p.readPage(pageID)
	if err != nil {
		return nil, err
	}

	if p.order.Len() >= p.capacity {
		if err := p.evictOne(); err != nil {
			return nil, err
		}
	}

	el := p.order.PushFront(&entry{id: pageID, buf: buf})
	p.byID[pageID] = el
	return buf, nil
}

// MarkDirty flags pageID as modified and promotes it to MRU. The page
// must already be resident (fetched via Get).
func (p *Pager) MarkDirty(pageID uint64) {
	el, ok := p.byID[pageID]
	if !ok {
		return
	}
	el.Value.(*entry).dirty = true
	p.order.MoveToFront(el)
}

// evictOne flushes and drops the least recently used page.
func (p *Pager) evictOne() error {
	back := p.order.Back()
	if back == nil {
		return nil
	}
	e := back.Value.(*entry)
	if e.dirty {
		p.log.Debug("evicting dirty page, flushing first", "page_id", e.id)
		if err := p.writePage(e.id, e.buf); err != nil {
			return fmt.Errorf("pager: flush on evict page %d: %w", e.id, err)
		}
	}
	p.order.Remove(back)
	delete(p.byID, e.id)
	return nil
}

// FlushAll writes every dirty resident page back to disk without
// evicting anything.
func (p *Pager) FlushAll() error {
	for el := p.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if !e.dirty {
			continue
		}
		if err := p.writePage(e.id, e.buf); err != nil {
			return fmt.Errorf("pager: flush page %d: %w", e.id, err)
		}
		e.dirty = false
	}
	return nil
}

// Close flushes all dirty pages and closes the underlying file. Further
// use of the Pager returns ErrClosed.
func (p *Pager) Close() error {
	if p.closed {
		return nil
	}
	if err := p.FlushAll(); err != nil {
		return err
	}
	p.closed = true
	return p.file.Close()
}

func (p *Pager) readPage(pageID uint64) ([]byte, error) {
	buf := make([]byte, p.pageSize)
	off := int64(pageID) * int64(p.pageSize)
	n, err := p.file.ReadAt(buf, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("pager: read page %d: %w", pageID, err)
	}
	if n < p.pageSize {
		// page never written yet (e.g. a fresh table): treat as zeroed
		for i := n; i < p.pageSize; i++ {
			buf[i] = 0
		}
	}
	return buf, nil
}

func (p *Pager) writePage(pageID uint64, buf []byte) error {
	off := int64(pageID) * int64(p.pageSize)
	_, err := p.file.WriteAt(buf, off)
	return err
}
