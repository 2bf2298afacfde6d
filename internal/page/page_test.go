package page

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumSlots(t *testing.T) {
	require.Equal(t, 4096/16, NumSlots(16))
	require.Equal(t, 0, NumSlots(0))
}

func TestSlotIn(t *testing.T) {
	buf := make([]byte, Size)
	copy(SlotIn(buf, 8, 2), []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf[16:24])
}

func TestValidateRowWidth(t *testing.T) {
	require.NoError(t, ValidateRowWidth(Size))
	require.ErrorIs(t, ValidateRowWidth(Size+1), ErrRowTooWide)
}
