package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for the events counter.
const (
	outcomeHandled   = "handled"
	outcomeUnmatched = "unmatched"
	outcomeFailed    = "failed"
)

type Metrics struct {
	received  uint64
	processed uint64
	unmatched uint64
	failed    uint64

	totalLatencyMS uint64
	startTime      time.Time

	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the counters. Prometheus collectors are registered on
// reg; a nil reg keeps them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		startTime: time.Now(),
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifier_events_total",
				Help: "Events dispatched through the pipeline by step and outcome",
			},
			[]string{"step", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classifier_event_duration_seconds",
				Help:    "Time spent dispatching one event",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step"},
		),
	}
}

// Observe records one dispatch.
func (m *Metrics) Observe(step string, matched bool, err error, elapsed time.Duration) {
	if step == "" {
		step = "none"
	}
	m.duration.WithLabelValues(step).Observe(elapsed.Seconds())

	switch {
	case err != nil:
		m.IncFailed()
		m.events.WithLabelValues(step, outcomeFailed).Inc()
	case matched:
		m.IncProcessed()
		m.AddLatency(elapsed.Milliseconds())
		m.events.WithLabelValues(step, outcomeHandled).Inc()
	default:
		m.IncUnmatched()
		m.events.WithLabelValues(step, outcomeUnmatched).Inc()
	}
}

func (m *Metrics) IncReceived() {
	atomic.AddUint64(&m.received, 1)
}

func (m *Metrics) IncProcessed() {
	atomic.AddUint64(&m.processed, 1)
}

func (m *Metrics) IncUnmatched() {
	atomic.AddUint64(&m.unmatched, 1)
}

func (m *Metrics) IncFailed() {
	atomic.AddUint64(&m.failed, 1)
}

func (m *Metrics) AddLatency(ms int64) {
	atomic.AddUint64(&m.totalLatencyMS, uint64(ms))
}

func (m *Metrics) GetReceived() uint64 {
	return atomic.LoadUint64(&m.received)
}

func (m *Metrics) GetProcessed() uint64 {
	return atomic.LoadUint64(&m.processed)
}

func (m *Metrics) GetUnmatched() uint64 {
	return atomic.LoadUint64(&m.unmatched)
}

func (m *Metrics) GetFailed() uint64 {
	return atomic.LoadUint64(&m.failed)
}

func (m *Metrics) AvgLatencyMS() float64 {
	processed := atomic.LoadUint64(&m.processed)
	if processed == 0 {
		return 0
	}
	total := atomic.LoadUint64(&m.totalLatencyMS)
	return float64(total) / float64(processed)
}

func (m *Metrics) EPS() float64 {
	secs := time.Since(m.startTime).Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(m.GetProcessed()) / secs
}

func (m *Metrics) StartTime() time.Time {
	return m.startTime
}
