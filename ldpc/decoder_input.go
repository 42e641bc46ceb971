package ldpc

import (
	"fmt"
	"math"
)

// FillerLLR is the decoder input used at filler positions: filler bits are
// known zeros, which map to the largest positive LLR.
const FillerLLR int8 = math.MaxInt8

// PrepareDecoderInput builds the Kc*Z int8 decoder input from a HARQ soft
// buffer. The first 2Z punctured systematic positions are zero (no
// information), filler positions are FillerLLR, soft-buffer values inside
// [0, Ncb) are saturated to int8 and positions past Ncb are zero.
func PrepareDecoderInput(dst []int8, harq []int16, p KernelParams, Ncb int) ([]int8, error) {
	n := DecoderColumns(p.BaseGraph) * p.Z
	if Ncb > len(harq) || Ncb > p.N() {
		return nil, fmt.Errorf("Ncb=%d soft buffer %d N=%d: %w", Ncb, len(harq), p.N(), ErrInvalidParameter)
	}
	fo := p.FillerOffset()
	if fo < 0 || fo+p.F > p.N() {
		return nil, fmt.Errorf("filler [%d,%d) outside N=%d: %w", fo, fo+p.F, p.N(), ErrInvalidParameter)
	}
	if cap(dst) < n {
		dst = make([]int8, n)
	}
	dst = dst[:n]
	clear(dst)

	z := dst[2*p.Z:]
	for j, v := range harq[:Ncb] {
		z[j] = sat8(v)
	}
	for j := fo; j < fo+p.F; j++ {
		z[j] = FillerLLR
	}
	return dst, nil
}

func sat8(v int16) int8 {
	switch {
	case v > math.MaxInt8:
		return math.MaxInt8
	case v < math.MinInt8:
		return math.MinInt8
	}
	return int8(v)
}
