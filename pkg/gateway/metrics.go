package gateway

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcome labels.
const (
	statusOK    = "ok"
	statusError = "error"
)

// Metrics records per-method request counts and latencies.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the gateway collectors and registers them on reg.
// Collectors already registered on reg by an earlier call are reused, so any number
// of gateways may share one registry. A nil reg leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Collectors are created unregistered and registered below.
	factory := promauto.With(nil)

	requests := factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ethcontract",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC requests sent to the node",
		},
		[]string{"method", "status"},
	)
	duration := factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ethcontract",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method"},
	)

	if reg != nil {
		requests = register(reg, requests)
		duration = register(reg, duration)
	}

	return &Metrics{requests: requests, duration: duration}
}

// register adds c to reg, returning the collector already registered under the same
// descriptor when there is one. Any other registration error is a programming error.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	panic(err)
}

func (m *Metrics) observe(method string, start time.Time, err error) {
	if m == nil {
		return
	}

	status := statusOK
	if err != nil {
		status = statusError
	}
	m.requests.WithLabelValues(method, status).Inc()
	m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
