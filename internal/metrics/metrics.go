// Package metrics exposes Prometheus collectors for the input pipeline.
//
// Collectors are registered on a caller-supplied registry so several engines
// (or tests) never share state. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keyintent/internal/pointer"
)

const namespace = "keyintent"

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	keysCommitted      prometheus.Counter
	wordsCommitted     *prometheus.CounterVec
	bounces            *prometheus.CounterVec
	multiTapCycles     prometheus.Counter
	repeatFires        prometheus.Counter
	longPresses        prometheus.Counter
	queries            prometheus.Counter
	queryDuration      prometheus.Histogram
	correctionsOffered prometheus.Counter
	wordsLearned       prometheus.Counter
	sessionsActive     prometheus.Gauge
	sessionsTotal      prometheus.Counter
	configReloads      *prometheus.CounterVec
}

var _ pointer.Observer = (*Metrics)(nil)

// New registers the pipeline collectors on reg. A nil reg gets a fresh
// registry that also carries the Go runtime and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		keysCommitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_committed_total",
			Help:      "Key codes delivered to the composer or editor.",
		}),
		wordsCommitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_committed_total",
			Help:      "Words committed, by how they were chosen.",
		}, []string{"source"}),
		bounces: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_absorbed_total",
			Help:      "Key changes absorbed by the debouncer, by rule.",
		}, []string{"kind"}),
		multiTapCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "multitap_cycles_total",
			Help:      "Multi-tap taps that replaced the previous character.",
		}),
		repeatFires: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_repeats_total",
			Help:      "Auto-repeat firings.",
		}),
		longPresses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "long_presses_total",
			Help:      "Long presses consumed by the listener.",
		}),
		queries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestion_queries_total",
			Help:      "Suggestion queries run.",
		}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "suggestion_query_duration_seconds",
			Help:      "Time spent ranking suggestions.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),
		correctionsOffered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrections_offered_total",
			Help:      "Queries whose result allowed auto-correction.",
		}),
		wordsLearned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_learned_total",
			Help:      "Commits fed to the auto-learning dictionary.",
		}),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Input sessions currently open.",
		}),
		sessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Input sessions started.",
		}),
		configReloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Configuration reloads, by outcome.",
		}, []string{"result"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Bounce implements pointer.Observer.
func (m *Metrics) Bounce(kind pointer.BounceKind) {
	if m == nil {
		return
	}
	m.bounces.WithLabelValues(string(kind)).Inc()
}

// MultiTapCycle implements pointer.Observer.
func (m *Metrics) MultiTapCycle() {
	if m == nil {
		return
	}
	m.multiTapCycles.Inc()
}

// RepeatFired implements pointer.Observer.
func (m *Metrics) RepeatFired() {
	if m == nil {
		return
	}
	m.repeatFires.Inc()
}

// LongPress implements pointer.Observer.
func (m *Metrics) LongPress() {
	if m == nil {
		return
	}
	m.longPresses.Inc()
}

// RecordKey counts one committed key code.
func (m *Metrics) RecordKey() {
	if m == nil {
		return
	}
	m.keysCommitted.Inc()
}

// Word commit sources.
const (
	SourceTyped     = "typed"
	SourceCorrected = "corrected"
	SourcePicked    = "picked"
)

// RecordWord counts one committed word.
func (m *Metrics) RecordWord(source string) {
	if m == nil {
		return
	}
	m.wordsCommitted.WithLabelValues(source).Inc()
}

// RecordQuery records one ranker query.
func (m *Metrics) RecordQuery(d time.Duration, correctionAvailable bool) {
	if m == nil {
		return
	}
	m.queries.Inc()
	m.queryDuration.Observe(d.Seconds())
	if correctionAvailable {
		m.correctionsOffered.Inc()
	}
}

// RecordLearned counts one learning step.
func (m *Metrics) RecordLearned() {
	if m == nil {
		return
	}
	m.wordsLearned.Inc()
}

// RecordConfigReload counts a reload attempt.
func (m *Metrics) RecordConfigReload(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.configReloads.WithLabelValues(result).Inc()
}

// SessionStarted records the start of an input session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

// SessionEnded records the end of an input session.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}
