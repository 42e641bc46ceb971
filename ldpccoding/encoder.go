package ldpccoding

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/observe-l/nrcoding/ldpc"
)

// Segment is one code block of a transport block.
type Segment struct {
	// Systematic holds the K input bits (CRC attached, filler bits zero)
	// packed MSB first.
	Systematic []byte
	// E is the number of rate-matched bits assigned to the segment.
	E int
	// Muted marks a segment that is not transmitted in this slot. A muted
	// segment must have E == 0; E == 0 without Muted is rejected.
	Muted bool
}

// TransportBlock is the unit handed to SlotEncoder.
type TransportBlock struct {
	ID       int
	Params   ldpc.CodingParams
	Segments []Segment
	// G is the total number of coded bits. When non-zero it must equal the
	// sum of the segment E values; zero means "use the sum".
	G int
	// Output receives the G interleaved bits packed LSB first. It is
	// allocated when shorter than ceil(G/8).
	Output []byte
}

// SegmentError reports a failure of one segment, or of the whole transport
// block when Segment is negative.
type SegmentError struct {
	TB      int
	Segment int
	Err     error
}

func (e *SegmentError) Error() string {
	if e.Segment < 0 {
		return fmt.Sprintf("tb %d: %v", e.TB, e.Err)
	}
	return fmt.Sprintf("tb %d segment %d: %v", e.TB, e.Segment, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// TBResult is the outcome of one transport block in a slot.
type TBResult struct {
	ID     int
	Bits   int  // coded bits written to Output
	Failed bool // at least one segment failed; Output is all zero
}

// SlotReport summarizes one EncodeSlot call.
type SlotReport struct {
	Results []TBResult
	Tasks   int
	Elapsed time.Duration
}

// TaskCount returns the number of macro-block tasks needed for tbs.
func TaskCount(tbs []*TransportBlock) int {
	n := 0
	for _, tb := range tbs {
		if tb == nil {
			continue
		}
		n += (len(tb.Segments) + MacroBlockSize - 1) / MacroBlockSize
	}
	return n
}

// EncoderOptions configures a SlotEncoder.
type EncoderOptions struct {
	// Pool runs the macro-block tasks. When nil the encoder starts its own
	// pool with Workers goroutines and closes it in Close.
	Pool    *Pool
	Workers int
	Metrics *Metrics
	Logger  *log.Logger
}

// SlotEncoder encodes the transport blocks of a slot in parallel.
type SlotEncoder struct {
	enc     Encoder
	pool    *Pool
	ownPool bool
	metrics *Metrics
	log     *log.Logger
	scratch *sync.Pool
}

func NewSlotEncoder(enc Encoder, opts EncoderOptions) *SlotEncoder {
	s := &SlotEncoder{
		enc:     enc,
		pool:    opts.Pool,
		metrics: opts.Metrics,
		log:     opts.Logger,
		scratch: newScratchPool(),
	}
	if s.pool == nil {
		s.pool = NewPool(opts.Workers, 0)
		s.ownPool = true
	}
	if s.log == nil {
		s.log = log.Default()
	}
	return s
}

// Close stops the worker pool if the encoder owns it.
func (s *SlotEncoder) Close() {
	if s.ownPool {
		s.pool.Close()
	}
}

// tbJob is the per-transport-block state shared by its tasks.
type tbJob struct {
	tb      *TransportBlock
	blocks  []MacroBlock
	offsets []int
	bits    []byte // G unpacked bits, written by tasks at disjoint offsets
	errs    []error
	nbytes  int
}

// EncodeSlot encodes every transport block of the slot, waits for all
// tasks and then writes each block's packed output.
//
// Configuration errors fail only the affected transport block: its whole
// Output range stays zero and its TBResult is marked Failed. The returned error
// joins one *SegmentError per failure. An internal consistency failure
// (ldpc.ErrInternal) fails the whole slot.
func (s *SlotEncoder) EncodeSlot(tbs []*TransportBlock) (*SlotReport, error) {
	start := time.Now()
	rep := &SlotReport{Results: make([]TBResult, len(tbs))}
	jobs := make([]*tbJob, len(tbs))
	var errs []error

	for i, tb := range tbs {
		job, err := prepare(tb)
		if tb != nil {
			rep.Results[i].ID = tb.ID
		}
		if err != nil {
			rep.Results[i].Failed = true
			errs = append(errs, err)
			s.log.Printf("[WARN] %v", err)
			continue
		}
		jobs[i] = job
	}

	comp := NewCompletion(TaskCount(tbs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		for _, mb := range job.blocks {
			s.pool.Submit(&segmentTask{
				enc:     s.enc,
				job:     job,
				mb:      mb,
				scratch: s.scratch,
				metrics: s.metrics,
				ticket:  comp.Reserve(),
			})
			rep.Tasks++
		}
	}
	comp.Wait()

	internal := false
	for i, job := range jobs {
		if job == nil {
			continue
		}
		for r, err := range job.errs {
			if err == nil {
				continue
			}
			if errors.Is(err, ldpc.ErrInternal) {
				internal = true
			}
			rep.Results[i].Failed = true
			errs = append(errs, &SegmentError{TB: job.tb.ID, Segment: r, Err: err})
		}
	}

	if internal {
		for i, job := range jobs {
			rep.Results[i].Failed = true
			if job != nil {
				clear(job.tb.Output[:job.nbytes])
			}
		}
		rep.Elapsed = time.Since(start)
		s.metrics.observeSlot(dirTX, rep.Elapsed)
		s.log.Printf("[ERROR] slot aborted after %d tasks", rep.Tasks)
		return rep, fmt.Errorf("slot aborted: %w", errors.Join(errs...))
	}

	for i, job := range jobs {
		if job == nil {
			continue
		}
		out := job.tb.Output[:job.nbytes]
		clear(out)
		if rep.Results[i].Failed {
			s.log.Printf("[WARN] tb %d: segment failure, output withheld", job.tb.ID)
			continue
		}
		ldpc.PackBits(out, 0, job.bits)
		rep.Results[i].Bits = len(job.bits)
	}
	rep.Elapsed = time.Since(start)
	s.metrics.observeSlot(dirTX, rep.Elapsed)
	s.log.Printf("[DEBUG] slot encoded: %d tbs, %d tasks in %s", len(tbs), rep.Tasks, rep.Elapsed)
	return rep, errors.Join(errs...)
}

// prepare validates tb and lays out its output. Failures are returned as
// *SegmentError.
func prepare(tb *TransportBlock) (*tbJob, error) {
	if tb == nil {
		return nil, fmt.Errorf("nil transport block: %w", ldpc.ErrInvalidParameter)
	}
	fail := func(seg int, err error) (*tbJob, error) {
		clear(tb.Output)
		return nil, &SegmentError{TB: tb.ID, Segment: seg, Err: err}
	}

	p := tb.Params
	if err := p.Validate(); err != nil {
		return fail(-1, err)
	}
	if len(tb.Segments) != p.C {
		return fail(-1, fmt.Errorf("%d segments for C=%d: %w", len(tb.Segments), p.C, ldpc.ErrInvalidParameter))
	}
	kBytes := (p.K + 7) / 8
	for r, seg := range tb.Segments {
		if len(seg.Systematic) < kBytes {
			return fail(r, fmt.Errorf("systematic input %d bytes, need %d: %w", len(seg.Systematic), kBytes, ldpc.ErrInvalidParameter))
		}
		if seg.E < 0 {
			return fail(r, fmt.Errorf("E=%d: %w", seg.E, ldpc.ErrInvalidParameter))
		}
	}
	offsets, total := OutputOffsets(tb.Segments)
	if tb.G != 0 && tb.G != total {
		return fail(-1, fmt.Errorf("sum of E %d != G %d: %w", total, tb.G, ldpc.ErrInvalidParameter))
	}

	nbytes := (total + 7) / 8
	if len(tb.Output) < nbytes {
		tb.Output = make([]byte, nbytes)
	}
	return &tbJob{
		tb:      tb,
		blocks:  Partition(p.C),
		offsets: offsets,
		bits:    make([]byte, total),
		errs:    make([]error, p.C),
		nbytes:  nbytes,
	}, nil
}
