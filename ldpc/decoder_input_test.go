package ldpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrepareDecoderInput(t *testing.T) {
	p := KernelParams{BaseGraph: BG2, Z: 4, K: 40, F: 4}
	harq := make([]int16, p.N())
	for i := range harq {
		harq[i] = int16(i*7 - 300)
	}
	z, err := PrepareDecoderInput(nil, harq, p, 150)
	require.NoError(t, err)
	require.Len(t, z, 52*4)

	for j := 0; j < 2*p.Z; j++ {
		require.Zero(t, z[j])
	}
	fo := p.FillerOffset()
	require.Equal(t, 28, fo)
	for j := 0; j < p.N(); j++ {
		got := z[2*p.Z+j]
		switch {
		case j >= fo && j < fo+p.F:
			require.Equal(t, FillerLLR, got, "filler %d", j)
		case j >= 150:
			require.Zero(t, got, "past Ncb %d", j)
		default:
			require.Equal(t, sat8(harq[j]), got, "position %d", j)
		}
	}
	require.Equal(t, int8(-128), z[2*p.Z])
}

func TestPrepareDecoderInputErrors(t *testing.T) {
	p := KernelParams{BaseGraph: BG1, Z: 2, K: 44, F: 0}
	_, err := PrepareDecoderInput(nil, make([]int16, 10), p, 20)
	require.ErrorIs(t, err, ErrInvalidParameter)
}
