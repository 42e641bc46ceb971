package ldpc

import "errors"

var (
	// ErrInvalidParameter reports coding parameters that cannot produce a
	// valid circular-buffer selection or interleaving.
	ErrInvalidParameter = errors.New("ldpc: invalid parameter")
	// ErrUnsupportedModulationOrder reports a Qm outside {2,4,6,8}.
	ErrUnsupportedModulationOrder = errors.New("ldpc: unsupported modulation order")
	// ErrInternal reports a consistency failure inside the coding chain,
	// e.g. a rate-matched length that differs from the assigned E.
	ErrInternal = errors.New("ldpc: internal consistency error")
)
