// Package ldpc implements the rate matching stage of the NR LDPC channel
// coding chain: circular-buffer selection, rate matching and HARQ soft
// combining, and the modulation-order bit interleaver.
package ldpc
