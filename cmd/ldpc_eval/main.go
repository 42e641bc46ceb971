package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/observe-l/nrcoding/internal/channel"
	"github.com/observe-l/nrcoding/internal/config"
	"github.com/observe-l/nrcoding/internal/harqdb"
	"github.com/observe-l/nrcoding/internal/tbwire"
	"github.com/observe-l/nrcoding/internal/testkernel"
	"github.com/observe-l/nrcoding/ldpc"
	"github.com/observe-l/nrcoding/ldpccoding"
)

const rnti uint16 = 0x4601

func main() {
	var (
		cfgPath = flag.String("config", "", "config file (yaml); defaults and NRC_* env when empty")
		out     = flag.String("out", "", "override output.report")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ldpc_eval: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		cfg.Output.Report = *out
	}
	config.SetupLogging(cfg.Logging.Level, os.Stderr)

	reg := prometheus.NewRegistry()
	metrics := ldpccoding.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Printf("[ERROR] metrics endpoint: %v", err)
			}
		}()
		log.Printf("[INFO] metrics on http://%s/metrics", cfg.Metrics.Addr)
	}

	r, err := run(cfg, metrics)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
	if err := writeReport(cfg.Output.Report, cfg, r, metrics.Stats()); err != nil {
		log.Printf("[ERROR] write report: %v", err)
		os.Exit(1)
	}
	log.Printf("[INFO] report written to %s", cfg.Output.Report)
}

// result aggregates one evaluation.
type result struct {
	runs       int
	successAt  []int // successAt[i]: runs decoded after i+1 transmissions
	failed     int
	flips      int
	bits       int
	enc, dec   time.Duration
	dumped     int
	restored   int
	checkpoint int
}

func run(cfg *config.Config, metrics *ldpccoding.Metrics) (*result, error) {
	kernel := testkernel.Kernel{Key: cfg.Sim.Key}
	enc := ldpccoding.NewSlotEncoder(kernel, ldpccoding.EncoderOptions{
		Workers: cfg.Sim.Workers,
		Metrics: metrics,
	})
	defer enc.Close()
	store := ldpc.NewMemoryStore()
	dec := ldpccoding.NewSlotDecoder(store, ldpccoding.DecoderOptions{
		Decoder: kernel,
		Workers: cfg.Sim.Workers,
		Metrics: metrics,
	})

	var dump *tbwire.Writer
	if cfg.Output.DumpTB != "" {
		f, err := os.Create(cfg.Output.DumpTB)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if dump, err = tbwire.NewWriter(f); err != nil {
			return nil, err
		}
	}

	// soft buffers left by an earlier run are resumed from the checkpoint
	var db *harqdb.DB
	if cfg.Output.HarqDB != "" {
		var err error
		if db, err = harqdb.Open(cfg.Output.HarqDB, log.Default()); err != nil {
			return nil, err
		}
		defer db.Close()
	}

	E, err := ldpc.SplitCodedBits(cfg.Code.G, cfg.Code.C, cfg.Code.Qm, cfg.Code.Layers)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Sim.Seed))
	bsc := channel.New(cfg.Sim.FlipProb, int16(cfg.Sim.Amplitude), rng)
	res := &result{runs: cfg.Sim.Runs, successAt: make([]int, len(cfg.Sim.RVSequence))}
	if db != nil {
		if res.restored, err = db.Restore(store); err != nil {
			return nil, fmt.Errorf("restore soft buffers: %w", err)
		}
		if res.restored > 0 {
			log.Printf("[INFO] resumed %d soft buffers from %s", res.restored, cfg.Output.HarqDB)
		}
	}
	ctx := context.Background()

	for t := 0; t < cfg.Sim.Runs; t++ {
		pid := uint8(t % 16)
		msgs := make([][]byte, cfg.Code.C)
		for i := range msgs {
			msgs[i] = randomSystematic(rng, cfg.Code.K, cfg.Code.F)
		}
		decoded := false
		for round, rv := range cfg.Sim.RVSequence {
			p := cfg.Params(rv)
			tb := &ldpccoding.TransportBlock{ID: t, Params: p, G: cfg.Code.G}
			for i, m := range msgs {
				tb.Segments = append(tb.Segments, ldpccoding.Segment{Systematic: m, E: E[i]})
			}
			t0 := time.Now()
			if _, err := enc.EncodeSlot([]*ldpccoding.TransportBlock{tb}); err != nil {
				return nil, fmt.Errorf("run %d rv %d: %w", t, rv, err)
			}
			res.enc += time.Since(t0)
			if dump != nil {
				if err := dump.Write(tbwire.HeaderFor(t, p, cfg.Code.G), tb.Output); err != nil {
					return nil, err
				}
			}

			rx := receive(bsc, tb, res)
			t1 := time.Now()
			out, err := dec.DecodeSlot(ctx, []*ldpccoding.ReceivedBlock{{
				ID: t, RNTI: rnti, HarqPID: pid, NewData: round == 0, Params: p, Segments: rx,
			}})
			res.dec += time.Since(t1)
			if err != nil {
				return nil, fmt.Errorf("run %d rv %d: %w", t, rv, err)
			}
			if allDecoded(out[0], msgs) {
				res.successAt[round]++
				decoded = true
				break
			}
		}
		if decoded {
			store.ReleaseProcess(rnti, pid)
		} else {
			res.failed++
			log.Printf("[DEBUG] run %d: not decoded after %d transmissions", t, len(cfg.Sim.RVSequence))
		}
	}

	if dump != nil {
		res.dumped = dump.Records()
		if err := dump.Close(); err != nil {
			return nil, err
		}
	}
	if db != nil {
		if res.checkpoint, err = db.SaveStore(store); err != nil {
			return nil, fmt.Errorf("checkpoint soft buffers: %w", err)
		}
		log.Printf("[INFO] checkpointed %d soft buffers to %s", res.checkpoint, cfg.Output.HarqDB)
	}
	return res, nil
}

// receive slices the packed TB output per segment and passes it through the
// channel.
func receive(bsc *channel.BSC, tb *ldpccoding.TransportBlock, res *result) []ldpccoding.ReceivedSegment {
	offs, _ := ldpccoding.OutputOffsets(tb.Segments)
	rx := make([]ldpccoding.ReceivedSegment, len(tb.Segments))
	before := bsc.Flips()
	for r, s := range tb.Segments {
		bits := make([]byte, s.E)
		ldpc.UnpackBitsLSB(bits, tb.Output, offs[r])
		rx[r].LLR = bsc.Transmit(nil, bits)
		res.bits += s.E
	}
	res.flips += bsc.Flips() - before
	return rx
}

func allDecoded(r ldpccoding.DecodeResult, msgs [][]byte) bool {
	if r.Failed {
		return false
	}
	for i, m := range msgs {
		if !r.Converged[i] || !bytes.Equal(r.Payload[i], m) {
			return false
		}
	}
	return true
}

func randomSystematic(rng *rand.Rand, K, F int) []byte {
	bits := make([]byte, K)
	for i := 0; i < K-F; i++ {
		bits[i] = byte(rng.Intn(2))
	}
	out := make([]byte, (K+7)/8)
	ldpc.PackBitsMSB(out, bits)
	return out
}

func writeReport(path string, cfg *config.Config, r *result, st ldpccoding.Stats) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# LDPC rate matching HARQ evaluation\n\n")
	fmt.Fprintf(&b, "- BG=%d Z=%d K=%d F=%d C=%d Qm=%d G=%d TBSLBRM=%d\n",
		cfg.Code.BaseGraph, cfg.Code.Z, cfg.Code.K, cfg.Code.F, cfg.Code.C, cfg.Code.Qm, cfg.Code.G, cfg.Code.TBSLBRM)
	fmt.Fprintf(&b, "- runs=%d flip_prob=%.4f amplitude=%d rv_sequence=%v seed=%d\n",
		r.runs, cfg.Sim.FlipProb, cfg.Sim.Amplitude, cfg.Sim.RVSequence, cfg.Sim.Seed)
	if r.bits > 0 {
		fmt.Fprintf(&b, "- observed flip rate=%.4f over %d bits\n", float64(r.flips)/float64(r.bits), r.bits)
	}
	b.WriteString("\n| transmissions | decoded | cumulative | residual BLER |\n|---:|---:|---:|---:|\n")
	cum := 0
	for i, n := range r.successAt {
		cum += n
		fmt.Fprintf(&b, "| %d (rv=%d) | %d | %d | %.4f |\n", i+1, cfg.Sim.RVSequence[i], n, cum, float64(r.runs-cum)/float64(r.runs))
	}
	fmt.Fprintf(&b, "\nFailed after all transmissions: %d\n\n", r.failed)
	fmt.Fprintf(&b, "| metric | value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| encode total | %s |\n| decode total | %s |\n", r.enc, r.dec)
	fmt.Fprintf(&b, "| slots | %d |\n| encode tasks | %d |\n", st.Slots, st.Tasks)
	fmt.Fprintf(&b, "| segments encoded | %d |\n| segments combined | %d |\n| segments converged | %d |\n",
		st.EncodedSegments, st.DecodedSegments, st.Converged)
	fmt.Fprintf(&b, "| segment errors | %d |\n", st.FailedSegments)
	if r.dumped > 0 {
		fmt.Fprintf(&b, "| TB records dumped | %d |\n", r.dumped)
	}
	if cfg.Output.HarqDB != "" {
		fmt.Fprintf(&b, "| soft buffers resumed | %d |\n", r.restored)
		fmt.Fprintf(&b, "| soft buffers checkpointed | %d |\n", r.checkpoint)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
