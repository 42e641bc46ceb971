package ldpccoding

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/observe-l/nrcoding/internal/testkernel"
	"github.com/observe-l/nrcoding/ldpc"
)

// receivedFrom turns the packed output of tb into noiseless LLRs of
// amplitude amp per segment.
func receivedFrom(tb *TransportBlock, amp int16) []ReceivedSegment {
	offs, _ := OutputOffsets(tb.Segments)
	segs := make([]ReceivedSegment, len(tb.Segments))
	for r, s := range tb.Segments {
		if s.Muted {
			segs[r].Muted = true
			continue
		}
		bits := make([]byte, s.E)
		ldpc.UnpackBitsLSB(bits, tb.Output, offs[r])
		llr := make([]int16, s.E)
		for i, b := range bits {
			llr[i] = amp - 2*amp*int16(b)
		}
		segs[r].LLR = llr
	}
	return segs
}

func encodeOne(t *testing.T, k testkernel.Kernel, tb *TransportBlock) {
	t.Helper()
	enc := NewSlotEncoder(k, EncoderOptions{Workers: 2, Logger: quiet})
	defer enc.Close()
	_, err := enc.EncodeSlot([]*TransportBlock{tb})
	require.NoError(t, err)
}

func TestDecodeSlotRecoversPayload(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	k := testkernel.Kernel{Key: 5}
	tb := newTB(t, rng, 7, 5, 4, 0, 5*400)
	encodeOne(t, k, tb)

	store := ldpc.NewMemoryStore()
	m := NewMetrics(nil)
	dec := NewSlotDecoder(store, DecoderOptions{Decoder: k, Workers: 3, Metrics: m, Logger: quiet})
	res, err := dec.DecodeSlot(context.Background(), []*ReceivedBlock{{
		ID: 7, RNTI: 0x4601, HarqPID: 2, NewData: true,
		Params: tb.Params, Segments: receivedFrom(tb, 16),
	}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, 7, res[0].ID)
	require.Equal(t, 5, res[0].Processed)
	require.False(t, res[0].Failed)
	for r, seg := range tb.Segments {
		require.True(t, res[0].Converged[r], "segment %d", r)
		require.Equal(t, seg.Systematic, res[0].Payload[r])
	}
	require.Equal(t, 5, store.Len())
	require.EqualValues(t, 5, m.Stats().DecodedSegments)
	require.EqualValues(t, 5, m.Stats().Converged)
}

func TestDecodeSlotCombinesRetransmissions(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	k := testkernel.Kernel{}
	first := newTB(t, rng, 1, 2, 2, 0, 2*300)
	retx := &TransportBlock{ID: 1, Params: first.Params, Segments: first.Segments, G: first.G}
	retx.Params.RV = 2
	encodeOne(t, k, first)
	encodeOne(t, k, retx)

	store := ldpc.NewMemoryStore()
	dec := NewSlotDecoder(store, DecoderOptions{Workers: 2, Logger: quiet})
	rx := func(tb *TransportBlock, newData bool) {
		_, err := dec.DecodeSlot(context.Background(), []*ReceivedBlock{{
			RNTI: 1, HarqPID: 0, NewData: newData, Params: tb.Params, Segments: receivedFrom(tb, 3),
		}})
		require.NoError(t, err)
	}
	rx(first, true)
	rx(retx, false)

	p := first.Params
	N := p.MotherLength()
	fo := p.FillerOffset()
	for r := range first.Segments {
		want := make([]int16, N)
		for i, tb := range []*TransportBlock{first, retx} {
			llr := receivedFrom(tb, 3)[r].LLR
			deint := make([]int16, len(llr))
			require.NoError(t, ldpc.Deinterleave(deint, llr, p.Qm))
			cb, err := ldpc.SelectCircularBuffer(p.BaseGraph, p.Z, p.C, p.TBSLBRM, tb.Params.RV, fo, p.F, len(llr))
			require.NoError(t, err)
			require.NoError(t, ldpc.RateDematch(want, deint, cb, i == 0))
		}
		got := store.Buffer(ldpc.SoftBufferKey{RNTI: 1, HarqPID: 0, Segment: r}, N)
		require.Equal(t, want, got, "segment %d", r)
	}

	// new data resets the process
	rx(first, true)
	got := store.Buffer(ldpc.SoftBufferKey{RNTI: 1, Segment: 0}, N)
	for _, v := range got {
		require.LessOrEqual(t, v, int16(3))
		require.GreaterOrEqual(t, v, int16(-3))
	}
}

func TestDecodeSlotMutedSegmentResetsOnNewData(t *testing.T) {
	rng := rand.New(rand.NewSource(25))
	k := testkernel.Kernel{}
	tb := newTB(t, rng, 1, 2, 2, 0, 600)
	encodeOne(t, k, tb)

	store := ldpc.NewMemoryStore()
	m := NewMetrics(nil)
	dec := NewSlotDecoder(store, DecoderOptions{Workers: 2, Metrics: m, Logger: quiet})
	decode := func(segs []ReceivedSegment, newData bool) {
		_, err := dec.DecodeSlot(context.Background(), []*ReceivedBlock{{
			RNTI: 1, HarqPID: 0, NewData: newData, Params: tb.Params, Segments: segs,
		}})
		require.NoError(t, err)
	}
	decode(receivedFrom(tb, 4), true)

	segs := receivedFrom(tb, 4)
	segs[1] = ReceivedSegment{Muted: true}
	decode(segs, true)

	N := tb.Params.MotherLength()
	require.Equal(t, make([]int16, N), store.Buffer(ldpc.SoftBufferKey{RNTI: 1, Segment: 1}, N))

	// a retransmission of the new block combines from zero, not onto the old block
	retx := receivedFrom(tb, 4)
	retx[0] = ReceivedSegment{Muted: true}
	decode(retx, false)
	for _, v := range store.Buffer(ldpc.SoftBufferKey{RNTI: 1, Segment: 1}, N) {
		require.Contains(t, []int16{-4, 0, 4}, v)
	}
	require.EqualValues(t, 4, m.Stats().DecodedSegments)
}

func TestDecodeSlotSegmentErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	k := testkernel.Kernel{}
	tb := newTB(t, rng, 3, 3, 2, 0, 3*300)
	encodeOne(t, k, tb)

	segs := receivedFrom(tb, 8)
	segs[1] = ReceivedSegment{Muted: true}
	segs[2] = ReceivedSegment{}

	badParams := tb.Params
	badParams.Qm = 7

	store := ldpc.NewMemoryStore()
	dec := NewSlotDecoder(store, DecoderOptions{Workers: 2, Logger: quiet})
	res, err := dec.DecodeSlot(context.Background(), []*ReceivedBlock{
		{ID: 3, Params: tb.Params, Segments: segs, NewData: true},
		{ID: 4, Params: badParams, Segments: segs, NewData: true},
		{ID: 5, Params: tb.Params, Segments: segs[:2], NewData: true},
	})
	require.ErrorIs(t, err, ldpc.ErrInvalidParameter)
	require.ErrorIs(t, err, ldpc.ErrUnsupportedModulationOrder)

	require.True(t, res[0].Failed)
	require.Equal(t, 1, res[0].Processed)
	require.True(t, res[1].Failed)
	require.True(t, res[2].Failed)
	require.Zero(t, res[2].Processed)
	require.Equal(t, 1, store.Len())
}

func TestDecodeSlotCanceled(t *testing.T) {
	rng := rand.New(rand.NewSource(24))
	tb := newTB(t, rng, 1, 2, 2, 0, 600)
	encodeOne(t, testkernel.Kernel{}, tb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dec := NewSlotDecoder(ldpc.NewMemoryStore(), DecoderOptions{Logger: quiet})
	_, err := dec.DecodeSlot(ctx, []*ReceivedBlock{{Params: tb.Params, Segments: receivedFrom(tb, 1), NewData: true}})
	require.ErrorIs(t, err, context.Canceled)
}
