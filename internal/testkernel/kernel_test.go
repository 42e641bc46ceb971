package testkernel

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/observe-l/nrcoding/ldpc"
)

func TestEncodeDecodeClean(t *testing.T) {
	p := ldpc.KernelParams{BaseGraph: ldpc.BG2, Z: 16, K: 160, F: 8}
	rng := rand.New(rand.NewSource(1))
	msg := make([]byte, p.K/8)
	rng.Read(msg)
	msg[len(msg)-1] = 0 // filler

	k := Kernel{Key: 7}
	d := make([]byte, p.N())
	require.NoError(t, k.Encode([][]byte{msg}, p, [][]byte{d}))

	bits := make([]byte, p.K)
	ldpc.UnpackBitsMSB(bits, msg)
	require.Equal(t, bits[2*p.Z:], d[:p.K-2*p.Z])
	require.Equal(t, bits[:2*p.Z], d[p.K-2*p.Z:p.K])

	llr := make([]int8, ldpc.DecoderColumns(p.BaseGraph)*p.Z)
	for j, b := range d {
		llr[2*p.Z+j] = int8(20 - 40*int(b))
	}
	out := make([]byte, len(msg))
	ok, err := k.Decode(llr, p, out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, msg, out)

	// one parity error breaks the consistency check
	llr[2*p.Z+p.K+3] = -llr[2*p.Z+p.K+3]
	ok, err = k.Decode(llr, p, out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEncodeDeterministicPerKey(t *testing.T) {
	p := ldpc.KernelParams{BaseGraph: ldpc.BG1, Z: 8, K: 176}
	msg := make([]byte, 22)
	msg[0] = 0xa5
	a := make([]byte, p.N())
	b := make([]byte, p.N())
	c := make([]byte, p.N())
	require.NoError(t, Kernel{Key: 1}.Encode([][]byte{msg, msg}, p, [][]byte{a, b}))
	require.Equal(t, a, b)
	require.NoError(t, Kernel{Key: 2}.Encode([][]byte{msg}, p, [][]byte{c}))
	require.NotEqual(t, a[p.K:], c[p.K:])
}

func TestEncodeRejectsBadParams(t *testing.T) {
	p := ldpc.KernelParams{BaseGraph: ldpc.BG2, Z: 4, K: 4}
	err := Kernel{}.Encode([][]byte{{0}}, p, [][]byte{make([]byte, p.N())})
	require.ErrorIs(t, err, ldpc.ErrInvalidParameter)
}
