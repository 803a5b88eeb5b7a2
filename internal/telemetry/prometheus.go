package telemetry

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics publishes metric keys as Prometheus series. Keys ending in
// "_total" become counters, everything else a gauge.
type PrometheusMetrics struct {
	counters *prometheus.CounterVec
	gauges   *prometheus.GaugeVec

	mu     sync.Mutex
	stored map[string]uint64
}

// NewPrometheusMetrics registers the navbridge metric families on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "navbridge",
		Name:      "events_total",
		Help:      "Monotonic navbridge counters by key.",
	}, []string{"key"})
	gauges := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "navbridge",
		Name:      "state",
		Help:      "Point-in-time navbridge values by key.",
	}, []string{"key"})
	if reg != nil {
		if err := reg.Register(counters); err != nil {
			return nil, err
		}
		if err := reg.Register(gauges); err != nil {
			return nil, err
		}
	}
	return &PrometheusMetrics{
		counters: counters,
		gauges:   gauges,
		stored:   make(map[string]uint64),
	}, nil
}

func (m *PrometheusMetrics) Add(key string, delta uint64) {
	if m == nil || key == "" {
		return
	}
	if strings.HasSuffix(key, "_total") {
		m.counters.WithLabelValues(key).Add(float64(delta))
		return
	}
	m.mu.Lock()
	m.stored[key] += delta
	value := m.stored[key]
	m.mu.Unlock()
	m.gauges.WithLabelValues(key).Set(float64(value))
}

func (m *PrometheusMetrics) Store(key string, value uint64) {
	if m == nil || key == "" {
		return
	}
	if strings.HasSuffix(key, "_total") {
		// counters cannot be set; treat a store as the delta from the last value
		m.mu.Lock()
		prev := m.stored[key]
		m.stored[key] = value
		m.mu.Unlock()
		if value > prev {
			m.counters.WithLabelValues(key).Add(float64(value - prev))
		}
		return
	}
	m.mu.Lock()
	m.stored[key] = value
	m.mu.Unlock()
	m.gauges.WithLabelValues(key).Set(float64(value))
}

// Fanout forwards every update to each backend.
func Fanout(backends ...Metrics) Metrics {
	filtered := make(multiMetrics, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

type multiMetrics []Metrics

func (m multiMetrics) Add(key string, delta uint64) {
	for _, b := range m {
		b.Add(key, delta)
	}
}

func (m multiMetrics) Store(key string, value uint64) {
	for _, b := range m {
		b.Store(key, value)
	}
}
