package metrics

import (
	"StockPulse/internal/domain/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	summaries    *prometheus.CounterVec
	sessions     prometheus.Gauge
	staleDrops   prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses the default registry,
// which is what /metrics serves.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		signalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_overall_signals_total",
				Help: "Overall signal computations by source and decision",
			},
			[]string{"source", "decision"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		summaries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpulse_summaries_total",
				Help: "Section summary requests by outcome",
			},
			[]string{"section", "outcome"},
		),
		sessions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "stockpulse_ws_sessions",
				Help: "Open live view sessions",
			},
		),
		staleDrops: f.NewCounter(
			prometheus.CounterOpts{
				Name: "stockpulse_ws_stale_responses_total",
				Help: "Responses discarded because the viewer moved on",
			},
		),
	}
}

// RecordSignal counts one overall decision.
func (r *Recorder) RecordSignal(source string, d signal.Decision) {
	r.signalsTotal.WithLabelValues(source, d.String()).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordSummary(section, outcome string) {
	r.summaries.WithLabelValues(section, outcome).Inc()
}

func (r *Recorder) SetSessions(n int) { r.sessions.Set(float64(n)) }

func (r *Recorder) RecordStaleDrop() { r.staleDrops.Inc() }

// Nop discards everything. Used by the CLI and tests.
type Nop struct{}

func (Nop) RecordSignal(string, signal.Decision) {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordLatency(string, float64)        {}
func (Nop) RecordSummary(string, string)         {}
func (Nop) SetSessions(int)                      {}
func (Nop) RecordStaleDrop()                     {}
