package ldpc

import "fmt"

// k0Table holds the starting-position numerators of TS 38.212 Table 5.4.2.1-2,
// indexed by [base graph - 1][rv]. The denominator is N/Z.
var k0Table = [2][4]int{
	{0, 17, 33, 56},
	{0, 13, 25, 43},
}

// CircularBuffer describes the index sequence that the rate matcher and the
// rate dematcher walk over the encoded codeword.
//
// The sequence starts at K0, increases by one, skips the filler region
// [FillerOffset, FillerOffset+FillerBits) and wraps at Ncb.
type CircularBuffer struct {
	K0           int
	Ncb          int
	FillerOffset int
	FillerBits   int
}

// SelectCircularBuffer computes the circular-buffer window and start offset
// of one segment. It is used identically by transmitter and receiver.
func SelectCircularBuffer(bg, Z, C int, tbslbrm uint32, rv, fillerOffset, F, E int) (CircularBuffer, error) {
	if bg != BG1 && bg != BG2 {
		return CircularBuffer{}, fmt.Errorf("base graph %d: %w", bg, ErrInvalidParameter)
	}
	if Z <= 0 {
		return CircularBuffer{}, fmt.Errorf("Z=%d: %w", Z, ErrInvalidParameter)
	}
	if C <= 0 {
		return CircularBuffer{}, fmt.Errorf("C=%d: %w", C, ErrInvalidParameter)
	}
	if rv < 0 || rv > 3 {
		return CircularBuffer{}, fmt.Errorf("rv=%d: %w", rv, ErrInvalidParameter)
	}
	if F < 0 || fillerOffset < 0 {
		return CircularBuffer{}, fmt.Errorf("fillerOffset=%d F=%d: %w", fillerOffset, F, ErrInvalidParameter)
	}

	N := MotherLength(bg, Z)
	Ncb := N
	if tbslbrm > 0 {
		lim := 3 * uint64(tbslbrm) / (2 * uint64(C))
		if lim < uint64(N) {
			Ncb = int(lim)
		}
	}

	if fillerOffset > E {
		return CircularBuffer{}, fmt.Errorf("fillerOffset %d > E %d: %w", fillerOffset, E, ErrInvalidParameter)
	}
	if fillerOffset > Ncb {
		return CircularBuffer{}, fmt.Errorf("fillerOffset %d > Ncb %d: %w", fillerOffset, Ncb, ErrInvalidParameter)
	}

	k0 := (k0Table[bg-1][rv] * Ncb / N) * Z
	if k0 >= fillerOffset && k0 < fillerOffset+F {
		k0 = fillerOffset + F
	}
	if k0 >= Ncb {
		k0 = 0
	}
	return CircularBuffer{K0: k0, Ncb: Ncb, FillerOffset: fillerOffset, FillerBits: F}, nil
}

// fillerEnd returns the end of the filler region clipped to Ncb.
func (cb CircularBuffer) fillerEnd() int {
	return min(cb.FillerOffset+cb.FillerBits, cb.Ncb)
}

// Usable returns the number of non-filler positions inside the window.
func (cb CircularBuffer) Usable() int {
	return cb.Ncb - (cb.fillerEnd() - cb.FillerOffset)
}

// check reports whether E positions can be walked from cb.
func (cb CircularBuffer) check(E int) error {
	if E == 0 {
		return nil
	}
	if cb.Usable() <= 0 {
		return fmt.Errorf("no transmittable positions in Ncb=%d: %w", cb.Ncb, ErrInvalidParameter)
	}
	if cb.K0 < 0 || cb.K0 >= cb.Ncb {
		return fmt.Errorf("k0=%d outside Ncb=%d: %w", cb.K0, cb.Ncb, ErrInvalidParameter)
	}
	return nil
}

// forEachRun walks E positions of the selection and calls fn once per
// contiguous run: output positions [out, out+n) map to codeword positions
// [idx, idx+n).
func (cb CircularBuffer) forEachRun(E int, fn func(out, idx, n int)) error {
	if err := cb.check(E); err != nil || E == 0 {
		return err
	}
	fEnd := cb.fillerEnd()
	idx := cb.K0
	for out := 0; out < E; {
		if idx >= cb.FillerOffset && idx < fEnd {
			idx = fEnd
			if idx >= cb.Ncb {
				idx = 0
			}
			continue
		}
		end := cb.Ncb
		if idx < cb.FillerOffset {
			end = cb.FillerOffset
		}
		n := min(end-idx, E-out)
		fn(out, idx, n)
		out += n
		idx += n
		if idx >= cb.Ncb {
			idx = 0
		}
	}
	return nil
}

// Indices returns the codeword index of every selected bit. It exists for
// diagnostics and tests; the hot paths walk runs directly.
func (cb CircularBuffer) Indices(E int) ([]int, error) {
	idx := make([]int, E)
	err := cb.forEachRun(E, func(out, start, n int) {
		for j := 0; j < n; j++ {
			idx[out+j] = start + j
		}
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}
