package ldpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackBitsLSBFirst(t *testing.T) {
	dst := make([]byte, 2)
	PackBits(dst, 0, []byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 1})
	require.Equal(t, []byte{0x01, 0x02}, dst)

	// overwrite at an unaligned offset without clearing
	dst = []byte{0xff, 0xff}
	PackBits(dst, 6, []byte{0, 0, 0})
	require.Equal(t, []byte{0x3f, 0xfe}, dst)

	bits := make([]byte, 16)
	UnpackBitsLSB(bits, dst, 0)
	require.Equal(t, []byte{1, 1, 1, 1, 1, 1, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1}, bits)
}

func TestPackBitsMSBFirst(t *testing.T) {
	bits := []byte{1, 0, 1, 1, 0, 0, 0, 0, 1}
	packed := make([]byte, 2)
	PackBitsMSB(packed, bits)
	require.Equal(t, []byte{0xb0, 0x80}, packed)

	back := make([]byte, len(bits))
	UnpackBitsMSB(back, packed)
	require.Equal(t, bits, back)
}
