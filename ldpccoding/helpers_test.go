package ldpccoding

import (
	"io"
	"log"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/observe-l/nrcoding/internal/testkernel"
	"github.com/observe-l/nrcoding/ldpc"
)

var quiet = log.New(io.Discard, "", 0)

// randomSystematic returns K bits packed MSB first with the last F zero.
func randomSystematic(rng *rand.Rand, K, F int) []byte {
	bits := make([]byte, K)
	for i := 0; i < K-F; i++ {
		bits[i] = byte(rng.Intn(2))
	}
	out := make([]byte, (K+7)/8)
	ldpc.PackBitsMSB(out, bits)
	return out
}

// newTB builds a BG2 Z=16 K=160 F=8 transport block with G split evenly.
func newTB(t testing.TB, rng *rand.Rand, id, C, Qm, rv, G int) *TransportBlock {
	t.Helper()
	p := ldpc.CodingParams{BaseGraph: ldpc.BG2, Z: 16, K: 160, F: 8, C: C, RV: rv, Qm: Qm, Layers: 1}
	E, err := ldpc.SplitCodedBits(G, C, Qm, 1)
	require.NoError(t, err)
	tb := &TransportBlock{ID: id, Params: p, G: G}
	for r := 0; r < C; r++ {
		tb.Segments = append(tb.Segments, Segment{Systematic: randomSystematic(rng, p.K, p.F), E: E[r]})
	}
	return tb
}

// referenceBits runs the coding chain one segment at a time and returns the
// unpacked transport-block bits.
func referenceBits(t *testing.T, k testkernel.Kernel, tb *TransportBlock) []byte {
	t.Helper()
	p := tb.Params
	var bits []byte
	for _, seg := range tb.Segments {
		if seg.Muted {
			continue
		}
		d := make([]byte, p.MotherLength())
		require.NoError(t, k.Encode([][]byte{seg.Systematic}, p.Kernel(), [][]byte{d}))
		ldpc.MarkFiller(d, p.FillerOffset(), p.F)
		cb, err := ldpc.SelectCircularBuffer(p.BaseGraph, p.Z, p.C, p.TBSLBRM, p.RV, p.FillerOffset(), p.F, seg.E)
		require.NoError(t, err)
		e, err := ldpc.RateMatch(nil, d, cb, seg.E)
		require.NoError(t, err)
		il := make([]byte, seg.E)
		require.NoError(t, ldpc.Interleave(il, e, p.Qm))
		bits = append(bits, il...)
	}
	return bits
}

func referenceOutput(t *testing.T, k testkernel.Kernel, tb *TransportBlock) []byte {
	t.Helper()
	bits := referenceBits(t, k, tb)
	out := make([]byte, (len(bits)+7)/8)
	ldpc.PackBits(out, 0, bits)
	return out
}
