package channel

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransmitNoiseless(t *testing.T) {
	c := New(0, 12, rand.New(rand.NewSource(1)))
	llr := c.Transmit(nil, []byte{0, 1, 1, 0})
	require.Equal(t, []int16{12, -12, -12, 12}, llr)
	require.Zero(t, c.Flips())
}

func TestTransmitAlwaysFlips(t *testing.T) {
	c := New(1, 5, rand.New(rand.NewSource(1)))
	llr := c.Transmit(make([]int16, 0, 8), []byte{0, 1})
	require.Equal(t, []int16{-5, 5}, llr)
	require.Equal(t, 2, c.Flips())
}

func TestFlipRate(t *testing.T) {
	c := New(0.1, 1, rand.New(rand.NewSource(42)))
	bits := make([]byte, 100000)
	c.Transmit(nil, bits)
	require.InDelta(t, 0.1, float64(c.Flips())/float64(len(bits)), 0.01)
}
