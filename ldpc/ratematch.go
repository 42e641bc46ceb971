package ldpc

import (
	"fmt"
	"math"
)

// FillerBit marks a filler position in an unpacked encoded codeword. Real
// bits are 0 or 1, so the marker can never be mistaken for data.
const FillerBit byte = 2

// MarkFiller writes FillerBit over the F filler positions of d starting at
// fillerOffset.
func MarkFiller(d []byte, fillerOffset, F int) {
	end := min(fillerOffset+F, len(d))
	for i := fillerOffset; i < end; i++ {
		d[i] = FillerBit
	}
}

// RateMatch selects E bits out of the encoded codeword d (one bit per byte)
// following cb. The result is written to dst, which is grown when its
// capacity is too small, and returned.
//
// Selection repeats the codeword when E exceeds the number of usable
// positions. E == 0 yields an empty selection.
func RateMatch(dst, d []byte, cb CircularBuffer, E int) ([]byte, error) {
	if E < 0 {
		return nil, fmt.Errorf("E=%d: %w", E, ErrInvalidParameter)
	}
	if cb.Ncb > len(d) {
		return nil, fmt.Errorf("Ncb %d exceeds codeword length %d: %w", cb.Ncb, len(d), ErrInvalidParameter)
	}
	if cap(dst) < E {
		dst = make([]byte, E)
	}
	dst = dst[:E]
	err := cb.forEachRun(E, func(out, idx, n int) {
		copy(dst[out:out+n], d[idx:idx+n])
	})
	if err != nil {
		return nil, err
	}
	return dst, nil
}

// RateDematch accumulates the deinterleaved LLRs of one transmission into
// the HARQ soft buffer harq, walking the same index sequence as RateMatch.
// len(llr) is the segment's E. When clearFirst is set harq[0:Ncb) is zeroed
// before combining, which starts a new transmission of the HARQ process.
//
// Filler positions are never written. Additions saturate at the int16 range.
// An invalid selection returns an error with harq untouched.
func RateDematch(harq, llr []int16, cb CircularBuffer, clearFirst bool) error {
	if cb.Ncb > len(harq) {
		return fmt.Errorf("Ncb %d exceeds soft buffer length %d: %w", cb.Ncb, len(harq), ErrInvalidParameter)
	}
	if err := cb.check(len(llr)); err != nil {
		return err
	}
	if clearFirst {
		clear(harq[:cb.Ncb])
	}
	return cb.forEachRun(len(llr), func(out, idx, n int) {
		h := harq[idx : idx+n]
		for j, v := range llr[out : out+n] {
			h[j] = addSat16(h[j], v)
		}
	})
}

func addSat16(a, b int16) int16 {
	s := int32(a) + int32(b)
	switch {
	case s > math.MaxInt16:
		return math.MaxInt16
	case s < math.MinInt16:
		return math.MinInt16
	}
	return int16(s)
}
