// Package testkernel provides a stand-in for the LDPC base-graph kernel with
// the same input and output layout. It is not an LDPC code: the 2Z
// punctured systematic bits are repeated right after the transmitted
// systematic part and the remaining positions carry a keyed xxhash bit
// stream of the message. That is enough to drive rate matching, HARQ
// combining and a hard-decision consistency check end to end.
package testkernel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/observe-l/nrcoding/ldpc"
)

const maxSegments = 8

// Kernel implements the encoder and decoder kernel interfaces.
type Kernel struct {
	// Key seeds the parity stream.
	Key uint64
}

func checkParams(p ldpc.KernelParams) error {
	if p.Z <= 0 || p.K <= 2*p.Z || p.K > p.N() || p.F < 0 || p.FillerOffset() < 0 {
		return fmt.Errorf("kernel params %+v: %w", p, ldpc.ErrInvalidParameter)
	}
	return nil
}

// Encode codes every in[i] into out[i].
func (k Kernel) Encode(in [][]byte, p ldpc.KernelParams, out [][]byte) error {
	if err := checkParams(p); err != nil {
		return err
	}
	if len(in) > maxSegments || len(out) < len(in) {
		return errors.New("bad segment count")
	}
	c := make([]byte, p.K)
	for i, msg := range in {
		if len(msg) < (p.K+7)/8 || len(out[i]) < p.N() {
			return fmt.Errorf("segment %d: short buffer", i)
		}
		ldpc.UnpackBitsMSB(c, msg)
		clear(c[p.K-p.F:])
		k.codeword(out[i][:p.N()], c, p)
	}
	return nil
}

// codeword fills d (length N) from the K message bits c.
func (k Kernel) codeword(d, c []byte, p ldpc.KernelParams) {
	Z2 := 2 * p.Z
	copy(d, c[Z2:])
	copy(d[p.K-Z2:], c[:Z2])
	k.parity(d[p.K:], c)
}

func (k Kernel) parity(dst, c []byte) {
	h := xxhash.New()
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], k.Key)
	h.Write(b[:8])
	h.Write(c)
	seed := h.Sum64()

	var x uint64
	for j := range dst {
		if j%64 == 0 {
			binary.LittleEndian.PutUint64(b[:8], seed)
			binary.LittleEndian.PutUint64(b[8:], uint64(j/64))
			x = xxhash.Sum64(b[:])
		}
		dst[j] = byte(x>>(j%64)) & 1
	}
}

func hard(v int8) byte {
	if v < 0 {
		return 1
	}
	return 0
}

// Decode takes hard decisions on the message positions, re-encodes and
// reports convergence when every non-zero LLR agrees with the codeword.
// Positions without information (zero LLR) are ignored by the check but
// must not be needed to recover the message.
func (k Kernel) Decode(llr []int8, p ldpc.KernelParams, out []byte) (bool, error) {
	if err := checkParams(p); err != nil {
		return false, err
	}
	if len(llr) < ldpc.DecoderColumns(p.BaseGraph)*p.Z {
		return false, fmt.Errorf("decoder input %d LLRs: %w", len(llr), ldpc.ErrInvalidParameter)
	}
	if len(out) < (p.K+7)/8 {
		return false, errors.New("short output buffer")
	}
	Z2 := 2 * p.Z
	c := make([]byte, p.K)
	for i := Z2; i < p.K; i++ {
		if llr[i] == 0 {
			return false, nil
		}
		c[i] = hard(llr[i])
	}
	// punctured bits come from their repetition at codeword position K-2Z+i
	for i := 0; i < Z2; i++ {
		v := llr[p.K+i]
		if v == 0 {
			return false, nil
		}
		c[i] = hard(v)
	}

	d := make([]byte, p.N())
	k.codeword(d, c, p)
	for j, bit := range d {
		v := llr[Z2+j]
		if v != 0 && hard(v) != bit {
			return false, nil
		}
	}
	ldpc.PackBitsMSB(out, c)
	return true, nil
}
