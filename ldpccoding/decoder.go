package ldpccoding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/observe-l/nrcoding/ldpc"
)

// ReceivedSegment carries the demodulated LLRs of one segment in
// transmission (interleaved) order. Positive LLRs favour bit 0.
type ReceivedSegment struct {
	LLR   []int16
	Muted bool
}

// ReceivedBlock is one transport block received for a HARQ process.
type ReceivedBlock struct {
	ID      int
	RNTI    uint16
	HarqPID uint8
	// NewData starts a new transmission: the soft buffers of the process
	// are cleared before combining.
	NewData  bool
	Params   ldpc.CodingParams
	Segments []ReceivedSegment
}

// DecodeResult is the outcome of one ReceivedBlock.
type DecodeResult struct {
	ID        int
	Processed int // segments combined into the soft buffers
	Failed    bool
	// Converged and Payload are only filled when a Decoder is configured.
	// Payload[r] holds K bits packed MSB first.
	Converged []bool
	Payload   [][]byte
}

// DecoderOptions configures a SlotDecoder.
type DecoderOptions struct {
	// Decoder is optional; without it DecodeSlot stops after soft combining.
	Decoder Decoder
	Workers int
	Metrics *Metrics
	Logger  *log.Logger
}

// SlotDecoder runs the receive side: per-segment deinterleaving and HARQ
// soft combining, followed by the decoder kernel when one is configured.
type SlotDecoder struct {
	store   ldpc.SoftBufferStore
	dec     Decoder
	workers int
	metrics *Metrics
	log     *log.Logger
	llrs    sync.Pool
}

func NewSlotDecoder(store ldpc.SoftBufferStore, opts DecoderOptions) *SlotDecoder {
	d := &SlotDecoder{
		store:   store,
		dec:     opts.Decoder,
		workers: opts.Workers,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if d.workers <= 0 {
		d.workers = max(runtime.NumCPU()-1, 1)
	}
	if d.log == nil {
		d.log = log.Default()
	}
	d.llrs.New = func() any { return new([]int16) }
	return d
}

// DecodeSlot processes every segment of blocks with at most Workers
// segments in flight. Segment failures are reported per block and joined
// into the returned error; only context cancellation stops the slot early.
func (d *SlotDecoder) DecodeSlot(ctx context.Context, blocks []*ReceivedBlock) ([]DecodeResult, error) {
	start := time.Now()
	res := make([]DecodeResult, len(blocks))
	segErrs := make([][]error, len(blocks))
	var errs []error

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, blk := range blocks {
		if blk == nil {
			res[i].Failed = true
			errs = append(errs, fmt.Errorf("nil received block: %w", ldpc.ErrInvalidParameter))
			continue
		}
		res[i].ID = blk.ID
		if err := d.check(blk); err != nil {
			res[i].Failed = true
			errs = append(errs, &SegmentError{TB: blk.ID, Segment: -1, Err: err})
			continue
		}
		segErrs[i] = make([]error, len(blk.Segments))
		if d.dec != nil {
			res[i].Converged = make([]bool, len(blk.Segments))
			res[i].Payload = make([][]byte, len(blk.Segments))
		}
		for r := range blk.Segments {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				err := d.decodeSegment(blk, r, &res[i])
				segErrs[i][r] = err
				if err != nil || !blk.Segments[r].Muted {
					d.metrics.observeSegment(dirRX, len(blk.Segments[r].LLR), err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	for i, blk := range blocks {
		for r, err := range segErrs[i] {
			if err != nil {
				res[i].Failed = true
				errs = append(errs, &SegmentError{TB: blk.ID, Segment: r, Err: err})
				continue
			}
			if !blk.Segments[r].Muted {
				res[i].Processed++
			}
		}
	}
	elapsed := time.Since(start)
	d.metrics.observeSlot(dirRX, elapsed)
	d.log.Printf("[DEBUG] slot decoded: %d blocks in %s", len(blocks), elapsed)
	return res, errors.Join(errs...)
}

func (d *SlotDecoder) check(blk *ReceivedBlock) error {
	if err := blk.Params.Validate(); err != nil {
		return err
	}
	if len(blk.Segments) != blk.Params.C {
		return fmt.Errorf("%d segments for C=%d: %w", len(blk.Segments), blk.Params.C, ldpc.ErrInvalidParameter)
	}
	return nil
}

func (d *SlotDecoder) decodeSegment(blk *ReceivedBlock, r int, res *DecodeResult) error {
	p := blk.Params
	seg := blk.Segments[r]
	E := len(seg.LLR)
	key := ldpc.SoftBufferKey{RNTI: blk.RNTI, HarqPID: blk.HarqPID, Segment: r}
	if seg.Muted {
		if E != 0 {
			return fmt.Errorf("muted segment with %d LLRs: %w", E, ldpc.ErrInvalidParameter)
		}
		// nothing received, but new data still invalidates the old soft values
		if blk.NewData {
			d.store.Release(key)
		}
		return nil
	}
	if E == 0 {
		return fmt.Errorf("no LLRs on a segment that is not muted: %w", ldpc.ErrInvalidParameter)
	}

	fo := p.FillerOffset()
	cb, err := ldpc.SelectCircularBuffer(p.BaseGraph, p.Z, p.C, p.TBSLBRM, p.RV, fo, p.F, E)
	if err != nil {
		return err
	}

	bp := d.llrs.Get().(*[]int16)
	defer d.llrs.Put(bp)
	if cap(*bp) < E {
		*bp = make([]int16, E)
	}
	deint := (*bp)[:E]
	if err := ldpc.Deinterleave(deint, seg.LLR, p.Qm); err != nil {
		return err
	}

	harq := d.store.Buffer(key, p.MotherLength())
	if err := ldpc.RateDematch(harq, deint, cb, blk.NewData); err != nil {
		return err
	}

	if d.dec == nil {
		return nil
	}
	kp := p.Kernel()
	z, err := ldpc.PrepareDecoderInput(nil, harq, kp, cb.Ncb)
	if err != nil {
		return err
	}
	out := make([]byte, (p.K+7)/8)
	ok, err := d.dec.Decode(z, kp, out)
	if err != nil {
		return fmt.Errorf("decoder kernel: %w", err)
	}
	res.Converged[r] = ok
	res.Payload[r] = out
	if ok {
		d.metrics.observeConverged()
	}
	return nil
}
