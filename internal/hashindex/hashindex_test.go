package hashindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashIndex_InsertAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	hi, err := Create(path)
	require.NoError(t, err)
	defer hi.Close()

	require.NoError(t, hi.Insert(int64(42), 7))
	got, err := hi.Lookup(int64(42))
	require.NoError(t, err)
	require.Contains(t, got, uint64(7))
}

func TestHashIndex_DeleteTombstones(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	hi, err := Create(path)
	require.NoError(t, err)
	defer hi.Close()

	require.NoError(t, hi.Insert(int64(1), 5))
	require.NoError(t, hi.Delete(int64(1), 5))

	got, err := hi.Lookup(int64(1))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestHashIndex_OverflowChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	hi, err := Create(path)
	require.NoError(t, err)
	defer hi.Close()

	// distinct integer values (slot 0 included) across several rehashes;
	// rehashing keeps these spread out, so they rarely share a bucket.
	for i := 0; i < 50; i++ {
		require.NoError(t, hi.Insert(int64(i), uint64(i)))
	}
	for i := 0; i < 50; i++ {
		got, err := hi.Lookup(int64(i))
		require.NoError(t, err)
		require.Contains(t, got, uint64(i))
	}

	// one value under ten slot ids: every entry has the same hash, so the
	// bucket (4 entries) must chain into overflow buckets.
	for i := 100; i < 110; i++ {
		require.NoError(t, hi.Insert(int64(1000), uint64(i)))
	}
	got, err := hi.Lookup(int64(1000))
	require.NoError(t, err)
	require.Len(t, got, 10)
}

func TestHashIndex_ReopenPreservesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	hi, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, hi.Insert(int64(99), 3))
	require.NoError(t, hi.Close())

	hi2, err := Open(path)
	require.NoError(t, err)
	defer hi2.Close()

	got, err := hi2.Lookup(int64(99))
	require.NoError(t, err)
	require.Contains(t, got, uint64(3))
}
