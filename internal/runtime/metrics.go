package runtime

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/statetree/internal/runtime/config"
)

// RequestMetrics tracks request and emission statistics.
type RequestMetrics struct {
	mu sync.RWMutex

	// Per-operation counts
	operations map[string]*OperationMetrics
	latencies  map[string]*durationRing
	emissions  uint64
	unhandled  uint64
	inFlight   int64

	// Prometheus collectors
	requestsTotal   *prometheus.CounterVec
	requestsCurrent prometheus.Gauge
	durationHist    *prometheus.HistogramVec
	emissionsTotal  prometheus.Counter
	unhandledTotal  prometheus.Counter

	registerer prometheus.Registerer
	registered bool
}

// OperationMetrics holds metrics for a single operation name.
type OperationMetrics struct {
	Dispatched    uint64         `json:"dispatched"`
	Succeeded     uint64         `json:"succeeded"`
	Failed        uint64         `json:"failed"`
	Unhandled     uint64         `json:"unhandled"`
	Latency       LatencyMetrics `json:"latency"`
	LastUpdatedAt time.Time      `json:"last_updated_at"`
}

// RequestMetricsSnapshot provides a point-in-time view of request metrics.
type RequestMetricsSnapshot struct {
	InFlight         int64                        `json:"in_flight"`
	Emissions        uint64                       `json:"emissions"`
	UnhandledErrors  uint64                       `json:"unhandled_errors"`
	OperationMetrics map[string]*OperationMetrics `json:"operation_metrics"`
	CollectedAt      time.Time                    `json:"collected_at"`
}

func newCounterVec(namespace, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newCounter(namespace, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func newHistogramVec(namespace, name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewRequestMetrics creates a new request metrics collector. An empty
// namespace falls back to config.DefaultMetricsNamespace and a nil registerer
// to prometheus.DefaultRegisterer.
func NewRequestMetrics(namespace string, registerer prometheus.Registerer) *RequestMetrics {
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &RequestMetrics{
		operations:    make(map[string]*OperationMetrics),
		latencies:     make(map[string]*durationRing),
		registerer:    registerer,
		requestsTotal: newCounterVec(namespace, "requests_total", "Total number of settled requests", []string{"operation", "outcome"}),
		requestsCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of requests dispatched to the store and not yet settled",
		}),
		durationHist:   newHistogramVec(namespace, "request_duration_seconds", "Time from dispatch to settlement", prometheus.DefBuckets, []string{"operation"}),
		emissionsTotal: newCounter(namespace, "snapshot_emissions_total", "Total number of snapshots delivered to observers"),
		unhandledTotal: newCounter(namespace, "unhandled_errors_total", "Total number of unhandled store errors"),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *RequestMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.requestsCurrent,
		m.durationHist,
		m.emissionsTotal,
		m.unhandledTotal,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordStart records a request being dispatched.
func (m *RequestMetrics) RecordStart(operation string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreateOperationMetrics(operation)
	metrics.Dispatched++
	metrics.LastUpdatedAt = time.Now()
	m.inFlight++

	m.requestsCurrent.Inc()
}

// RecordDone records a request settling with the given outcome.
func (m *RequestMetrics) RecordDone(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreateOperationMetrics(operation)
	switch outcome {
	case OutcomeSucceeded:
		metrics.Succeeded++
	case OutcomeFailed:
		metrics.Failed++
	default:
		metrics.Unhandled++
	}
	metrics.LastUpdatedAt = time.Now()

	window, ok := m.latencies[operation]
	if !ok {
		window = newDurationRing(durationSamples)
		m.latencies[operation] = window
	}
	window.Observe(duration)

	if m.inFlight > 0 {
		m.inFlight--
	}

	m.requestsTotal.WithLabelValues(operation, outcome).Inc()
	m.requestsCurrent.Set(float64(m.inFlight))
	m.durationHist.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEmission records a snapshot delivered to observers.
func (m *RequestMetrics) RecordEmission() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.emissions++
	m.mu.Unlock()
	m.emissionsTotal.Inc()
}

// RecordUnhandledError records an unhandled error broadcast.
func (m *RequestMetrics) RecordUnhandledError() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.unhandled++
	m.mu.Unlock()
	m.unhandledTotal.Inc()
}

// GetSnapshot returns a point-in-time snapshot of all request metrics.
func (m *RequestMetrics) GetSnapshot() RequestMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := RequestMetricsSnapshot{
		InFlight:         m.inFlight,
		Emissions:        m.emissions,
		UnhandledErrors:  m.unhandled,
		OperationMetrics: make(map[string]*OperationMetrics, len(m.operations)),
		CollectedAt:      time.Now(),
	}
	for op, metrics := range m.operations {
		clone := *metrics
		clone.Latency = m.latencies[op].Summary()
		snapshot.OperationMetrics[op] = &clone
	}
	return snapshot
}

// GetOperationMetrics returns metrics for a single operation, or nil.
func (m *RequestMetrics) GetOperationMetrics(operation string) *OperationMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if metrics, ok := m.operations[operation]; ok {
		clone := *metrics
		clone.Latency = m.latencies[operation].Summary()
		return &clone
	}
	return nil
}

func (m *RequestMetrics) getOrCreateOperationMetrics(operation string) *OperationMetrics {
	if metrics, ok := m.operations[operation]; ok {
		return metrics
	}
	metrics := &OperationMetrics{}
	m.operations[operation] = metrics
	return metrics
}

// Reset resets all metrics (useful for testing). Counters registered with
// Prometheus as plain counters keep their value.
func (m *RequestMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.operations = make(map[string]*OperationMetrics)
	m.latencies = make(map[string]*durationRing)
	m.emissions = 0
	m.unhandled = 0
	m.inFlight = 0
	m.requestsTotal.Reset()
	m.requestsCurrent.Set(0)
	m.durationHist.Reset()
}
