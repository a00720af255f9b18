// Package metric exposes prometheus collectors for the pipeline controller,
// the capture buffers and the optional sinks.
//
// A nil *Metric is valid and records nothing, so components can be built
// without metrics.
package metric

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dudk/pskrx/signal"
)

const namespace = "pskrx"

// Outcome labels for captured symbols.
const (
	Captured = "captured"
	Dropped  = "dropped"
)

// Metric holds collectors registered in its own registry.
type Metric struct {
	Registry *prometheus.Registry

	rebuilds    prometheus.Counter
	faults      prometheus.Counter
	mutations   *prometheus.CounterVec // parameter
	samples     *prometheus.CounterVec // stage
	duration    *prometheus.CounterVec // stage
	latency     *prometheus.GaugeVec   // stage
	symbols     *prometheus.CounterVec // outcome
	signalLevel prometheus.Gauge
	sinkBytes   *prometheus.CounterVec // sink
	sinkErrors  *prometheus.CounterVec // sink

	mu     sync.Mutex
	meters map[string]struct{}
}

// New creates collectors and registers them in a new registry.
func New() *Metric {
	m := &Metric{
		Registry: prometheus.NewRegistry(),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_rebuilds_total",
			Help:      "Number of full stage graph rebuilds",
		}),
		faults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_faults_total",
			Help:      "Number of failed stage graph rebuilds",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parameter_updates_total",
			Help:      "Number of applied in-place parameter updates",
		}, []string{"parameter"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_samples_total",
			Help:      "Number of samples consumed by a stage",
		}, []string{"stage"}),
		duration: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_signal_seconds_total",
			Help:      "Duration of signal consumed by a stage",
		}, []string{"stage"}),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_call_interval_seconds",
			Help:      "Time between two consecutive calls of a stage",
		}, []string{"stage"}),
		symbols: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_symbols_total",
			Help:      "Number of symbols offered to the capture buffer",
		}, []string{"outcome"}),
		signalLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signal_level_db",
			Help:      "Last polled signal level in dB",
		}),
		sinkBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_bytes_total",
			Help:      "Number of bytes written by an optional sink",
		}, []string{"sink"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Number of failed writes of an optional sink",
		}, []string{"sink"}),
		meters: make(map[string]struct{}),
	}
	m.Registry.MustRegister(
		m.rebuilds,
		m.faults,
		m.mutations,
		m.samples,
		m.duration,
		m.latency,
		m.symbols,
		m.signalLevel,
		m.sinkBytes,
		m.sinkErrors,
	)
	return m
}

// MeasureFunc captures metrics when buffer is processed.
type MeasureFunc func(samples int)

// Meter creates new meter closure to capture stage counters.
func (m *Metric) Meter(stage string, sampleRate float64) MeasureFunc {
	if m == nil {
		return func(int) {}
	}
	m.mu.Lock()
	m.meters[stage] = struct{}{}
	m.mu.Unlock()

	samples := m.samples.WithLabelValues(stage)
	duration := m.duration.WithLabelValues(stage)
	latency := m.latency.WithLabelValues(stage)
	calledAt := time.Now()
	return func(s int) {
		latency.Set(time.Since(calledAt).Seconds())
		samples.Add(float64(s))
		duration.Add(signal.DurationOf(sampleRate, int64(s)).Seconds())
		calledAt = time.Now()
	}
}

// Stages returns names of stages that have meters.
func (m *Metric) Stages() []string {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stages := make([]string, 0, len(m.meters))
	for s := range m.meters {
		stages = append(stages, s)
	}
	return stages
}

// Rebuild counts a completed topology rebuild.
func (m *Metric) Rebuild() {
	if m == nil {
		return
	}
	m.rebuilds.Inc()
}

// Fault counts a failed topology rebuild.
func (m *Metric) Fault() {
	if m == nil {
		return
	}
	m.faults.Inc()
}

// Mutation counts an in-place parameter update.
func (m *Metric) Mutation(parameter string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(parameter).Inc()
}

// Symbols counts symbols offered to a capture buffer.
func (m *Metric) Symbols(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.symbols.WithLabelValues(outcome).Add(float64(n))
}

// SignalLevel sets the last polled signal level.
func (m *Metric) SignalLevel(db float64) {
	if m == nil {
		return
	}
	m.signalLevel.Set(db)
}

// SinkWrite counts bytes written by a sink.
func (m *Metric) SinkWrite(sink string, n int) {
	if m == nil {
		return
	}
	m.sinkBytes.WithLabelValues(sink).Add(float64(n))
}

// SinkError counts a failed write of a sink.
func (m *Metric) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}
