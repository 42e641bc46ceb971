package ldpc

import "fmt"

// Base graph identifiers.
const (
	BG1 = 1
	BG2 = 2
)

// MotherLength returns N, the length of the encoded codeword without the
// 2Z punctured systematic bits: 66Z for BG1 and 50Z for BG2.
func MotherLength(bg, Z int) int {
	if bg == BG1 {
		return 66 * Z
	}
	return 50 * Z
}

// DecoderColumns returns Kc, the number of Z-sized columns handed to the
// decoder including the punctured ones (68 for BG1, 52 for BG2).
func DecoderColumns(bg int) int {
	if bg == BG1 {
		return 68
	}
	return 52
}

// SupportedQm reports whether Qm is a modulation order the interleaver handles.
func SupportedQm(Qm int) bool {
	switch Qm {
	case 2, 4, 6, 8:
		return true
	}
	return false
}

// KernelParams are the per-call parameters of the LDPC encoder and decoder
// kernels.
type KernelParams struct {
	BaseGraph int
	Z         int
	K         int // code block length including filler bits
	F         int // filler bits
}

// N is the mother codeword length produced by the kernel.
func (p KernelParams) N() int { return MotherLength(p.BaseGraph, p.Z) }

// FillerOffset is the first filler position inside the encoded codeword.
func (p KernelParams) FillerOffset() int { return p.K - p.F - 2*p.Z }

// CodingParams describe how every segment of one transport block is coded.
type CodingParams struct {
	BaseGraph int
	Z         int    // lifting size
	K         int    // code block length including filler
	F         int    // filler bits per segment
	C         int    // number of segments
	TBSLBRM   uint32 // limited-buffer rate-matching size in bits, 0 disables LBRM
	RV        int    // redundancy version 0..3
	Qm        int    // bits per modulation symbol
	Layers    int    // transmission layers, only used to split G
}

// Kernel returns the kernel parameters shared by all segments.
func (p CodingParams) Kernel() KernelParams {
	return KernelParams{BaseGraph: p.BaseGraph, Z: p.Z, K: p.K, F: p.F}
}

// FillerOffset returns K-F-2Z.
func (p CodingParams) FillerOffset() int { return p.K - p.F - 2*p.Z }

// MotherLength returns N for the configured base graph and lifting size.
func (p CodingParams) MotherLength() int { return MotherLength(p.BaseGraph, p.Z) }

// Validate checks the transport-block level parameters. Segment level checks
// (fillerOffset against E and Ncb) happen in SelectCircularBuffer.
func (p CodingParams) Validate() error {
	if p.BaseGraph != BG1 && p.BaseGraph != BG2 {
		return fmt.Errorf("base graph %d: %w", p.BaseGraph, ErrInvalidParameter)
	}
	if p.Z <= 0 {
		return fmt.Errorf("lifting size %d: %w", p.Z, ErrInvalidParameter)
	}
	if p.C <= 0 {
		return fmt.Errorf("segment count %d: %w", p.C, ErrInvalidParameter)
	}
	if p.RV < 0 || p.RV > 3 {
		return fmt.Errorf("rv %d: %w", p.RV, ErrInvalidParameter)
	}
	if p.F < 0 || p.FillerOffset() < 0 {
		return fmt.Errorf("K=%d F=%d Z=%d: %w", p.K, p.F, p.Z, ErrInvalidParameter)
	}
	if p.K-2*p.Z > p.MotherLength() {
		return fmt.Errorf("K=%d exceeds codeword N=%d: %w", p.K, p.MotherLength(), ErrInvalidParameter)
	}
	if !SupportedQm(p.Qm) {
		return fmt.Errorf("Qm=%d: %w", p.Qm, ErrUnsupportedModulationOrder)
	}
	return nil
}

// SplitCodedBits distributes G coded bits over C segments following
// TS 38.212 5.4.2.1: the first C - mod(G/(NL*Qm), C) segments receive
// NL*Qm*floor(G/(NL*Qm*C)) bits and the rest one more symbol group.
func SplitCodedBits(G, C, Qm, layers int) ([]int, error) {
	if C <= 0 || G < 0 {
		return nil, fmt.Errorf("G=%d C=%d: %w", G, C, ErrInvalidParameter)
	}
	if !SupportedQm(Qm) {
		return nil, fmt.Errorf("Qm=%d: %w", Qm, ErrUnsupportedModulationOrder)
	}
	if layers <= 0 {
		layers = 1
	}
	unit := layers * Qm
	if G%unit != 0 {
		return nil, fmt.Errorf("G=%d not a multiple of NL*Qm=%d: %w", G, unit, ErrInvalidParameter)
	}
	groups := G / unit
	q, rem := groups/C, groups%C
	E := make([]int, C)
	for r := range E {
		if r < C-rem {
			E[r] = unit * q
		} else {
			E[r] = unit * (q + 1)
		}
	}
	return E, nil
}
