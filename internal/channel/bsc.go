package channel

import (
	"math/rand"
)

// BSC is a binary symmetric channel producing LLRs: every bit is flipped
// with probability p, then mapped to +amp (bit 0) or -amp (bit 1).
type BSC struct {
	p     float64
	amp   int16
	rng   *rand.Rand
	flips int
}

func New(p float64, amp int16, rng *rand.Rand) *BSC { return &BSC{p: p, amp: amp, rng: rng} }

// Flip draws one u<p decision.
func (c *BSC) Flip() bool {
	if c.p <= 0 {
		return false
	}
	if c.p >= 1 {
		return true
	}
	return c.rng.Float64() < c.p
}

// Transmit maps bits (one per byte) to LLRs in dst, growing it if needed.
func (c *BSC) Transmit(dst []int16, bits []byte) []int16 {
	if cap(dst) < len(bits) {
		dst = make([]int16, len(bits))
	}
	dst = dst[:len(bits)]
	for i, b := range bits {
		b &= 1
		if c.Flip() {
			b ^= 1
			c.flips++
		}
		if b == 0 {
			dst[i] = c.amp
		} else {
			dst[i] = -c.amp
		}
	}
	return dst
}

// Flips returns the number of bits flipped so far.
func (c *BSC) Flips() int { return c.flips }
