package ldpc

import "fmt"

// Symbol is the element type the bit interleaver operates on: hard bits on
// the transmit side, LLRs on the receive side.
type Symbol interface {
	~uint8 | ~int8 | ~int16
}

func checkInterleave(dstLen, E, Qm int) error {
	if !SupportedQm(Qm) {
		return fmt.Errorf("Qm=%d: %w", Qm, ErrUnsupportedModulationOrder)
	}
	if E%Qm != 0 {
		return fmt.Errorf("E=%d not a multiple of Qm=%d: %w", E, Qm, ErrInvalidParameter)
	}
	if dstLen < E {
		return fmt.Errorf("dst length %d < E=%d: %w", dstLen, E, ErrInvalidParameter)
	}
	return nil
}

// Interleave writes the row-column interleaving of src into dst:
//
//	dst[i*Qm+q] = src[q*(E/Qm)+i]
//
// with E = len(src). The rate-matched sequence is read as Qm contiguous
// streams and every modulation symbol takes one bit from each stream.
func Interleave[T Symbol](dst, src []T, Qm int) error {
	E := len(src)
	if err := checkInterleave(len(dst), E, Qm); err != nil {
		return err
	}
	R := E / Qm
	for q := 0; q < Qm; q++ {
		stream := src[q*R : (q+1)*R]
		for i, v := range stream {
			dst[i*Qm+q] = v
		}
	}
	return nil
}

// Deinterleave inverts Interleave:
//
//	dst[q*(E/Qm)+i] = src[i*Qm+q]
func Deinterleave[T Symbol](dst, src []T, Qm int) error {
	E := len(src)
	if err := checkInterleave(len(dst), E, Qm); err != nil {
		return err
	}
	R := E / Qm
	for q := 0; q < Qm; q++ {
		stream := dst[q*R : (q+1)*R]
		for i := range stream {
			stream[i] = src[i*Qm+q]
		}
	}
	return nil
}
