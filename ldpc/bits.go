package ldpc

// PackBits writes the unpacked bits (one bit per byte, only the LSB is used)
// into dst starting at bit position bitOffset. Bits are packed LSB first:
// bit position b lands in dst[b>>3] at bit b&7. Each target bit is
// overwritten, so dst does not need to be cleared.
func PackBits(dst []byte, bitOffset int, bits []byte) {
	for i, v := range bits {
		b := bitOffset + i
		mask := byte(1) << (b & 7)
		if v&1 != 0 {
			dst[b>>3] |= mask
		} else {
			dst[b>>3] &^= mask
		}
	}
}

// UnpackBitsLSB is the inverse of PackBits: it reads len(dst) bits of src
// starting at bitOffset.
func UnpackBitsLSB(dst, src []byte, bitOffset int) {
	for i := range dst {
		b := bitOffset + i
		dst[i] = (src[b>>3] >> (b & 7)) & 1
	}
}

// UnpackBitsMSB reads len(dst) bits of src packed MSB first, the layout of
// segment systematic input.
func UnpackBitsMSB(dst, src []byte) {
	for i := range dst {
		dst[i] = (src[i>>3] >> (7 - (i & 7))) & 1
	}
}

// PackBitsMSB packs bits MSB first into dst, the inverse of UnpackBitsMSB.
func PackBitsMSB(dst, bits []byte) {
	for i, v := range bits {
		mask := byte(0x80) >> (i & 7)
		if v&1 != 0 {
			dst[i>>3] |= mask
		} else {
			dst[i>>3] &^= mask
		}
	}
}
