package ldpccoding

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	dirTX = "tx"
	dirRX = "rx"
)

// Metrics collects coding counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	segments  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	codedBits *prometheus.CounterVec
	tasks     prometheus.Counter
	slotTime  *prometheus.HistogramVec

	slots     atomic.Int64
	taskCount atomic.Int64
	encoded   atomic.Int64
	decoded   atomic.Int64
	converged atomic.Int64
	failed    atomic.Int64
	bits      atomic.Int64
	slotUs    atomic.Int64
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nrcoding",
			Name:      "segments_total",
			Help:      "Code block segments processed.",
		}, []string{"direction"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nrcoding",
			Name:      "segment_errors_total",
			Help:      "Code block segments that failed rate matching or dematching.",
		}, []string{"direction"}),
		codedBits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nrcoding",
			Name:      "coded_bits_total",
			Help:      "Rate-matched bits produced or consumed.",
		}, []string{"direction"}),
		tasks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nrcoding",
			Name:      "encode_tasks_total",
			Help:      "Macro-block encoding tasks run on the worker pool.",
		}),
		slotTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nrcoding",
			Name:      "slot_seconds",
			Help:      "Wall time of one slot encode or decode call.",
			Buckets:   prometheus.ExponentialBuckets(20e-6, 2, 14),
		}, []string{"direction"}),
	}
	if reg != nil {
		reg.MustRegister(m.segments, m.failures, m.codedBits, m.tasks, m.slotTime)
	}
	return m
}

func (m *Metrics) observeSegment(dir string, bits int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.failures.WithLabelValues(dir).Inc()
		m.failed.Add(1)
		return
	}
	m.segments.WithLabelValues(dir).Inc()
	m.codedBits.WithLabelValues(dir).Add(float64(bits))
	m.bits.Add(int64(bits))
	if dir == dirTX {
		m.encoded.Add(1)
	} else {
		m.decoded.Add(1)
	}
}

func (m *Metrics) observeConverged() {
	if m == nil {
		return
	}
	m.converged.Add(1)
}

func (m *Metrics) observeTask() {
	if m == nil {
		return
	}
	m.tasks.Inc()
	m.taskCount.Add(1)
}

func (m *Metrics) observeSlot(dir string, d time.Duration) {
	if m == nil {
		return
	}
	m.slotTime.WithLabelValues(dir).Observe(d.Seconds())
	m.slots.Add(1)
	m.slotUs.Add(d.Microseconds())
}

// Stats is a snapshot of the counters in Metrics.
type Stats struct {
	Slots           int64
	Tasks           int64
	EncodedSegments int64
	DecodedSegments int64
	Converged       int64
	FailedSegments  int64
	CodedBits       int64
	SlotUs          int64 // total slot wall time in µs
}

func (m *Metrics) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Slots:           m.slots.Load(),
		Tasks:           m.taskCount.Load(),
		EncodedSegments: m.encoded.Load(),
		DecodedSegments: m.decoded.Load(),
		Converged:       m.converged.Load(),
		FailedSegments:  m.failed.Load(),
		CodedBits:       m.bits.Load(),
		SlotUs:          m.slotUs.Load(),
	}
}
