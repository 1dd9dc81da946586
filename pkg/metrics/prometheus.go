package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchAttempts  *prometheus.CounterVec
	fetchBars      *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	signalsTotal   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastClose      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantterm_fetch_attempts_total",
				Help: "Total number of fetch attempts per provider",
			},
			[]string{"provider"},
		),
		fetchBars: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantterm_fetch_bars_total",
				Help: "Total number of bars fetched per provider",
			},
			[]string{"provider"},
		),
		fallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantterm_source_fallbacks_total",
				Help: "Times a provider was skipped over for the next in the chain",
			},
			[]string{"provider"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantterm_signals_total",
				Help: "Signals computed, labeled by fallback path (empty = model)",
			},
			[]string{"symbol", "fallback"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quantterm_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quantterm_last_close",
				Help: "Last fetched close price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quantterm_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetchAttempt records one provider call.
func (r *Recorder) RecordFetchAttempt(provider string) {
	r.fetchAttempts.WithLabelValues(provider).Inc()
}

// RecordFetchSuccess records a successful fetch and how many bars it yielded.
func (r *Recorder) RecordFetchSuccess(provider string, bars int) {
	r.fetchBars.WithLabelValues(provider).Add(float64(bars))
}

// RecordFallback records a provider being skipped for the next in the chain.
func (r *Recorder) RecordFallback(provider string) {
	r.fallbacksTotal.WithLabelValues(provider).Inc()
}

// RecordSignal records a computed signal and which path produced it.
func (r *Recorder) RecordSignal(symbol, fallback string) {
	r.signalsTotal.WithLabelValues(symbol, fallback).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastClose records the most recent close price for a symbol.
func (r *Recorder) RecordLastClose(symbol string, price float64) {
	r.lastClose.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
