package tbwire

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Writer appends zstd-compressed records to an underlying writer.
type Writer struct {
	zw  *zstd.Encoder
	hdr [HeaderLen]byte
	n   int
}

func NewWriter(w io.Writer) (*Writer, error) {
	zw, err := zstd.NewWriter(w,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		return nil, err
	}
	return &Writer{zw: zw}, nil
}

// Write appends one record. Version and PayloadLen of h are filled in.
func (w *Writer) Write(h RecordHeader, payload []byte) error {
	h.Version = Version
	h.PayloadLen = uint32(len(payload))
	if _, err := w.zw.Write(h.MarshalBinary(w.hdr[:])); err != nil {
		return err
	}
	if _, err := w.zw.Write(payload); err != nil {
		return err
	}
	w.n++
	return nil
}

// Records returns the number of records written.
func (w *Writer) Records() int { return w.n }

// Close flushes the zstd frame. It does not close the underlying writer.
func (w *Writer) Close() error { return w.zw.Close() }

// Reader iterates over records written by Writer.
type Reader struct {
	zr  *zstd.Decoder
	hdr [HeaderLen]byte
}

func NewReader(r io.Reader) (*Reader, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &Reader{zr: zr}, nil
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (RecordHeader, []byte, error) {
	var h RecordHeader
	if _, err := io.ReadFull(r.zr, r.hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return h, nil, fmt.Errorf("truncated record header: %w", err)
		}
		return h, nil, err
	}
	h.UnmarshalBinary(r.hdr[:])
	if h.Version != Version {
		return h, nil, fmt.Errorf("record version %d, want %d", h.Version, Version)
	}
	if uint64(h.PayloadLen) != (uint64(h.G)+7)/8 {
		return h, nil, fmt.Errorf("record payload %d bytes for G=%d bits", h.PayloadLen, h.G)
	}
	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r.zr, payload); err != nil {
		return h, nil, fmt.Errorf("record payload: %w", err)
	}
	return h, payload, nil
}

func (r *Reader) Close() { r.zr.Close() }
