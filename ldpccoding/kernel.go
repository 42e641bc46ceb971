package ldpccoding

import "github.com/observe-l/nrcoding/ldpc"

// Encoder is the LDPC base-graph encoding kernel.
//
// Encode codes up to MacroBlockSize segments in one call. in[i] holds the K
// systematic bits of segment i packed MSB first, filler bits zero. out[i]
// has length N (66Z for BG1, 50Z for BG2) and receives the codeword without
// the 2Z punctured systematic bits, one bit per byte.
type Encoder interface {
	Encode(in [][]byte, p ldpc.KernelParams, out [][]byte) error
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc func(in [][]byte, p ldpc.KernelParams, out [][]byte) error

func (f EncoderFunc) Encode(in [][]byte, p ldpc.KernelParams, out [][]byte) error {
	return f(in, p, out)
}

// Decoder is the LDPC decoding kernel. llr holds Kc*Z inputs as built by
// ldpc.PrepareDecoderInput; on success out receives the K decoded bits
// packed MSB first. The boolean reports whether decoding converged.
type Decoder interface {
	Decode(llr []int8, p ldpc.KernelParams, out []byte) (bool, error)
}
