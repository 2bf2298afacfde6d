package pager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.tbl")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestPager_GetReadsZeroedPageWhenAbsent(t *testing.T) {
	p, err := New(openTemp(t), 64, 4)
	require.NoError(t, err)

	buf, err := p.Get(3)
	require.NoError(t, err)
	require.Len(t, buf, 64)
	for _, b := range buf {
		require.Zero(t, b)
	}
}

func TestPager_WriteThenReadBackAfterEviction(t *testing.T) {
	p, err := New(openTemp(t), 8, 2)
	require.NoError(t, err)

	buf, err := p.Get(0)
	require.NoError(t, err)
	copy(buf, []byte("hello!!!"))
	p.MarkDirty(0)

	// fill and overflow the cache to force eviction of page 0
	for id := uint64(1); id <= 5; id++ {
		_, err := p.Get(id)
		require.NoError(t, err)
	}

	buf2, err := p.Get(0)
	require.NoError(t, err)
	require.Equal(t, []byte("hello!!!"), buf2)
}

func TestPager_MinCapacityEnforced(t *testing.T) {
	_, err := New(openTemp(t), 8, 1)
	require.ErrorIs(t, err, ErrCapacityTooSmall)
}

func TestPager_MoveToFrontOnGet(t *testing.T) {
	p, err := New(openTemp(t), 8, 2)
	require.NoError(t, err)

	_, err = p.Get(0)
	require.NoError(t, err)
	_, err = p.Get(1)
	require.NoError(t, err)
	// touch page 0 again so it becomes MRU, page 1 becomes LRU
	_, err = p.Get(0)
	require.NoError(t, err)

	buf1, err := p.Get(1)
	require.NoError(t, err)
	copy(buf1, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	p.MarkDirty(1)

	// Get(1) above promoted page 1 back to MRU, so this Get evicts page 0
	// and page 1 stays resident with its bytes intact
	_, err = p.Get(2)
	require.NoError(t, err)

	buf1Again, err := p.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf1Again)
}

func TestPager_CloseFlushesDirtyPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.tbl")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)

	p, err := New(f, 8, 4)
	require.NoError(t, err)

	buf, err := p.Get(0)
	require.NoError(t, err)
	copy(buf, []byte("persist!"))
	p.MarkDirty(0)

	require.NoError(t, p.Close())

	f2, err := os.Open(path)
	require.NoError(t, err)
	defer f2.Close()

	out := make([]byte, 8)
	_, err = f2.ReadAt(out, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("persist!"), out)
}
