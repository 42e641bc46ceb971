package ldpccoding

import (
	"fmt"
	"sync"

	"github.com/observe-l/nrcoding/ldpc"
)

// MacroBlockSize is the maximum number of segments coded by one task.
const MacroBlockSize = 8

// MacroBlock is a run of consecutive segments of one transport block.
type MacroBlock struct {
	First int
	Count int
}

// Partition splits C segments into macro-blocks of up to MacroBlockSize.
func Partition(C int) []MacroBlock {
	if C <= 0 {
		return nil
	}
	mbs := make([]MacroBlock, 0, (C+MacroBlockSize-1)/MacroBlockSize)
	for first := 0; first < C; first += MacroBlockSize {
		mbs = append(mbs, MacroBlock{First: first, Count: min(MacroBlockSize, C-first)})
	}
	return mbs
}

// OutputOffsets returns the bit offset of every segment inside the
// transport block output (the prefix sums of E) and the total.
func OutputOffsets(segs []Segment) ([]int, int) {
	offs := make([]int, len(segs))
	total := 0
	for r, s := range segs {
		offs[r] = total
		total += s.E
	}
	return offs, total
}

// taskScratch is per-task working memory recycled through a sync.Pool.
type taskScratch struct {
	in [][]byte
	d  [][]byte
	e  []byte
}

func newScratchPool() *sync.Pool {
	return &sync.Pool{New: func() any {
		return &taskScratch{
			in: make([][]byte, 0, MacroBlockSize),
			d:  make([][]byte, MacroBlockSize),
		}
	}}
}

// codewords returns count codeword buffers of length N.
func (s *taskScratch) codewords(count, N int) [][]byte {
	for i := 0; i < count; i++ {
		if cap(s.d[i]) < N {
			s.d[i] = make([]byte, N)
		}
		s.d[i] = s.d[i][:N]
	}
	return s.d[:count]
}

// segmentTask encodes, rate matches and interleaves one macro-block. Each
// segment writes only its own [offset, offset+E) range of bits and its own
// errs slot, so tasks of a slot never touch shared state.
type segmentTask struct {
	enc     Encoder
	job     *tbJob
	mb      MacroBlock
	scratch *sync.Pool
	metrics *Metrics
	ticket  Ticket
}

func (t *segmentTask) Run() {
	defer t.ticket.Done()
	t.metrics.observeTask()

	sc := t.scratch.Get().(*taskScratch)
	defer t.scratch.Put(sc)

	tb := t.job.tb
	kp := tb.Params.Kernel()
	sc.in = sc.in[:0]
	for r := t.mb.First; r < t.mb.First+t.mb.Count; r++ {
		sc.in = append(sc.in, tb.Segments[r].Systematic)
	}
	out := sc.codewords(t.mb.Count, kp.N())
	if err := t.enc.Encode(sc.in, kp, out); err != nil {
		for r := t.mb.First; r < t.mb.First+t.mb.Count; r++ {
			t.job.errs[r] = fmt.Errorf("encoder kernel: %w", err)
			t.metrics.observeSegment(dirTX, 0, err)
		}
		return
	}
	for i, d := range out {
		r := t.mb.First + i
		err := t.rateMatch(sc, d, r)
		t.job.errs[r] = err
		if err != nil || !tb.Segments[r].Muted {
			t.metrics.observeSegment(dirTX, tb.Segments[r].E, err)
		}
	}
}

func (t *segmentTask) rateMatch(sc *taskScratch, d []byte, r int) error {
	p := t.job.tb.Params
	seg := &t.job.tb.Segments[r]
	if seg.Muted {
		if seg.E != 0 {
			return fmt.Errorf("muted segment with E=%d: %w", seg.E, ldpc.ErrInvalidParameter)
		}
		return nil
	}
	if seg.E <= 0 {
		return fmt.Errorf("E=%d on a segment that is not muted: %w", seg.E, ldpc.ErrInvalidParameter)
	}

	fo := p.FillerOffset()
	ldpc.MarkFiller(d, fo, p.F)
	cb, err := ldpc.SelectCircularBuffer(p.BaseGraph, p.Z, p.C, p.TBSLBRM, p.RV, fo, p.F, seg.E)
	if err != nil {
		return err
	}
	e, err := ldpc.RateMatch(sc.e, d, cb, seg.E)
	if err != nil {
		return err
	}
	sc.e = e
	if len(e) != seg.E {
		return fmt.Errorf("rate matcher returned %d bits, want %d: %w", len(e), seg.E, ldpc.ErrInternal)
	}
	off := t.job.offsets[r]
	return ldpc.Interleave(t.job.bits[off:off+seg.E], e, p.Qm)
}
