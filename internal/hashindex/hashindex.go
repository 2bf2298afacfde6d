// Package hashindex implements an on-disk open-addressing hash index with
// overflow chains: a fixed number of power-of-two "primary" buckets, each
// holding a small fixed number of (hash, slot id) entries plus a 4-byte
// pointer to an overflow bucket when the primary bucket fills up.
package hashindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"os"

	"github.com/daniilsunyaev/yarrd/internal/alias/bx"
	"github.com/daniilsunyaev/yarrd/internal/alias/util"
	"github.com/daniilsunyaev/yarrd/internal/pager"
)

const (
	entriesPerBucket = 4
	entrySize        = 16 // 8-byte hash + 8-byte slot id
	nextPtrSize      = 4
	bucketSize       = entriesPerBucket*entrySize + nextPtrSize

	// Slot ids start at 0, so both sentinels sit at the top of the range.
	emptySlot     = uint64(math.MaxUint64 - 1)
	tombstoneSlot = math.MaxUint64
	noOverflow    = uint32(0xFFFFFFFF)

	loadFactorThreshold = 0.5
)

var (
	ErrNotFound = errors.New("hashindex: entry not found")
)

// meta is the JSON sidecar persisted alongside the bucket file, recording
// the state a hash index needs to reopen without rescanning: how many
// primary buckets exist, how many buckets (primary+overflow) have been
// allocated in total, and how many live (non-tombstoned) entries exist.
type meta struct {
	BucketCount   uint64 `json:"bucket_count"`
	NextBucketID  uint64 `json:"next_bucket_id"`
	LiveEntries   uint64 `json:"live_entries"`
}

// HashIndex is an on-disk hash index over a single column's values.
type HashIndex struct {
	dataPath string
	metaPath string

	file  *os.File
	pager *pager.Pager
	meta  meta

	log *slog.Logger
}

// Create initializes a fresh hash index at path with a single primary
// bucket.
func Create(path string) (*HashIndex, error) {
	return open(path, true)
}

// Open reopens an existing hash index previously created with Create.
func Open(path string) (*HashIndex, error) {
	return open(path, false)
}

func open(path string, fresh bool) (*HashIndex, error) {
	dataPath := path + ".hdat"
	metaPath := path + ".hmeta.json"

	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("hashindex: open data file: %w", err)
	}

	p, err := pager.New(f, bucketSize, pager.DefaultCapacity)
	if err != nil {
		util.CloseFileFunc(f)
		return nil, err
	}

	hi := &HashIndex{
		dataPath: dataPath,
		metaPath: metaPath,
		file:     f,
		pager:    p,
		log:      slog.Default().With("component", "hashindex", "path", path),
	}

	if fresh {
		hi.meta = meta{BucketCount: 1, NextBucketID: 1, LiveEntries: 0}
		if err := hi.initBucket(0); err != nil {
			return nil, err
		}
		if err := hi.saveMeta(); err != nil {
			return nil, err
		}
		return hi, nil
	}

	if err := hi.loadMeta(); err != nil {
		p.Close()
		return nil, err
	}
	return hi, nil
}

func (hi *HashIndex) loadMeta() error {
	b, err := os.ReadFile(hi.metaPath)
	if err != nil {
		return fmt.Errorf("hashindex: read meta: %w", err)
	}
	return json.Unmarshal(b, &hi.meta)
}

func (hi *HashIndex) saveMeta() error {
	b, err := json.MarshalIndent(hi.meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(hi.metaPath, b, 0o644)
}

func (hi *HashIndex) initBucket(id uint64) error {
	buf, err := hi.pager.Get(id)
	if err != nil {
		return err
	}
	for i := 0; i < entriesPerBucket; i++ {
		off := i * entrySize
		bx.PutU64(buf[off:off+8], 0)
		bx.PutU64(buf[off+8:off+16], emptySlot)
	}
	bx.PutU32(buf[entriesPerBucket*entrySize:], noOverflow)
	hi.pager.MarkDirty(id)
	return nil
}

// HashValue computes the FNV-1a 64-bit hash of a decoded column value.
func HashValue(v any) uint64 {
	h := fnv.New64a()
	switch x := v.(type) {
	case int64:
		var b [8]byte
		bx.PutU64(b[:], uint64(x))
		h.Write(b[:])
	case float64:
		var b [8]byte
		bx.PutU64(b[:], math.Float64bits(x))
		h.Write(b[:])
	case string:
		h.Write([]byte(x))
	}
	return h.Sum64()
}

func (hi *HashIndex) bucketEntry(buf []byte, i int) (hash, slotID uint64) {
	off := i * entrySize
	return bx.U64(buf[off : off+8]), bx.U64(buf[off+8 : off+16])
}

func (hi *HashIndex) setEntry(buf []byte, i int, hash, slotID uint64) {
	off := i * entrySize
	bx.PutU64(buf[off:off+8], hash)
	bx.PutU64(buf[off+8:off+16], slotID)
}

func (hi *HashIndex) nextPtr(buf []byte) uint32 {
	return bx.U32(buf[entriesPerBucket*entrySize:])
}

func (hi *HashIndex) setNextPtr(buf []byte, next uint32) {
	bx.PutU32(buf[entriesPerBucket*entrySize:], next)
}

// Insert records that value hashes to slotID.
func (hi *HashIndex) Insert(value any, slotID uint64) error {
	return hi.insertHash(HashValue(value), slotID)
}

// insertHash places a precomputed hash into the bucket chain. Used both
// by Insert and by rehashing, which only ever has the retained hash (the
// index never stores the original column value, only its hash).
func (hi *HashIndex) insertHash(h, slotID uint64) error {
	bucket := h & (hi.meta.BucketCount - 1)

	for {
		buf, err := hi.pager.Get(bucket)
		if err != nil {
			return err
		}
		for i := 0; i < entriesPerBucket; i++ {
			_, s := hi.bucketEntry(buf, i)
			if s == emptySlot || s == tombstoneSlot {
				hi.setEntry(buf, i, h, slotID)
				hi.pager.MarkDirty(bucket)
				hi.meta.LiveEntries++
				return hi.maybeRehash()
			}
		}
		next := hi.nextPtr(buf)
		if next == noOverflow {
			newID := hi.meta.NextBucketID
			hi.meta.NextBucketID++
			if err := hi.initBucket(newID); err != nil {
				return err
			}
			hi.setNextPtr(buf, uint32(newID))
			hi.pager.MarkDirty(bucket)
			bucket = newID
			continue
		}
		bucket = uint64(next)
	}
}

// Lookup returns the slot ids whose value hashed to value's hash. Callers
// must re-check the actual row value, since distinct values can collide
// under FNV-1a.
func (hi *HashIndex) Lookup(value any) ([]uint64, error) {
	h := HashValue(value)
	bucket := h & (hi.meta.BucketCount - 1)

	var out []uint64
	for {
		buf, err := hi.pager.Get(bucket)
		if err != nil {
			return nil, err
		}
		for i := 0; i < entriesPerBucket; i++ {
			eh, s := hi.bucketEntry(buf, i)
			if s != emptySlot && s != tombstoneSlot && eh == h {
				out = append(out, s)
			}
		}
		next := hi.nextPtr(buf)
		if next == noOverflow {
			return out, nil
		}
		bucket = uint64(next)
	}
}

// Delete removes the (value, slotID) entry, tombstoning its slot.
func (hi *HashIndex) Delete(value any, slotID uint64) error {
	h := HashValue(value)
	bucket := h & (hi.meta.BucketCount - 1)

	for {
		buf, err := hi.pager.Get(bucket)
		if err != nil {
			return err
		}
		for i := 0; i < entriesPerBucket; i++ {
			eh, s := hi.bucketEntry(buf, i)
			if s == slotID && eh == h {
				hi.setEntry(buf, i, 0, tombstoneSlot)
				hi.pager.MarkDirty(bucket)
				hi.meta.LiveEntries--
				return nil
			}
		}
		next := hi.nextPtr(buf)
		if next == noOverflow {
			return ErrNotFound
		}
		bucket = uint64(next)
	}
}

// maybeRehash doubles the primary bucket count and reinserts every live
// entry when the load factor exceeds 0.5, per the target load factor.
func (hi *HashIndex) maybeRehash() error {
	loadFactor := float64(hi.meta.LiveEntries) / float64(hi.meta.BucketCount)
	if loadFactor <= loadFactorThreshold {
		return nil
	}

	hi.log.Debug("rehash: doubling bucket count", "old_count", hi.meta.BucketCount, "load_factor", loadFactor)

	entries, err := hi.collectLive()
	if err != nil {
		return err
	}

	if err := hi.pager.Close(); err != nil {
		return err
	}

	tmpPath := hi.dataPath + ".rehash"
	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("hashindex: create rehash file: %w", err)
	}
	p, err := pager.New(f, bucketSize, pager.DefaultCapacity)
	if err != nil {
		util.CloseFileFunc(f)
		return err
	}

	newCount := hi.meta.BucketCount * 2
	dataPath := hi.dataPath
	hi.file, hi.pager = f, p
	hi.meta = meta{BucketCount: newCount, NextBucketID: newCount, LiveEntries: 0}

	for i := uint64(0); i < newCount; i++ {
		if err := hi.initBucket(i); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := hi.insertHash(e.hash, e.slotID); err != nil {
			return err
		}
	}

	if err := hi.pager.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dataPath); err != nil {
		return fmt.Errorf("hashindex: swap rehashed file: %w", err)
	}

	f2, err := os.OpenFile(dataPath, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	p2, err := pager.New(f2, bucketSize, pager.DefaultCapacity)
	if err != nil {
		return err
	}
	hi.file, hi.pager = f2, p2

	return hi.saveMeta()
}

// collectLive walks every allocated bucket and returns the still-live
// (hash, slotID) pairs. Rehashing rebuilds bucket placement from these
// retained hashes directly, since the index never stores the original
// column value.
func (hi *HashIndex) collectLive() ([]rawEntry, error) {
	var out []rawEntry
	bucket := uint64(0)
	visited := make(map[uint64]bool)
	for bucket < hi.meta.NextBucketID {
		if visited[bucket] {
			bucket++
			continue
		}
		visited[bucket] = true
		buf, err := hi.pager.Get(bucket)
		if err != nil {
			return nil, err
		}
		for i := 0; i < entriesPerBucket; i++ {
			h, s := hi.bucketEntry(buf, i)
			if s != emptySlot && s != tombstoneSlot {
				out = append(out, rawEntry{hash: h, slotID: s})
			}
		}
		bucket++
	}
	return out, nil
}

type rawEntry struct {
	hash   uint64
	slotID uint64
}

// Close flushes and closes the bucket file and persists metadata.
func (hi *HashIndex) Close() error {
	if err := hi.saveMeta(); err != nil {
		return err
	}
	return hi.pager.Close()
}
