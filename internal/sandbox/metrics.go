package sandbox

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/svcrt/internal/abort"
	"github.com/roach88/svcrt/internal/host"
)

// Metrics holds the Prometheus collectors of one sandbox host.
// Each host owns its registry so that parallel tests do not share counters.
type Metrics struct {
	registry *prometheus.Registry

	calls      *prometheus.CounterVec
	aborts     *prometheus.CounterVec
	dispatches prometheus.Histogram
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "svcrt",
			Subsystem: "sandbox",
			Name:      "host_calls_total",
			Help:      "Host primitive invocations by primitive.",
		}, []string{"primitive"}),
		aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "svcrt",
			Subsystem: "sandbox",
			Name:      "aborts_total",
			Help:      "Executions aborted by the host, by abort code.",
		}, []string{"code"}),
		dispatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "svcrt",
			Subsystem: "sandbox",
			Name:      "dispatch_depth",
			Help:      "Nesting depth at which cross-application queries were dispatched.",
			Buckets:   prometheus.LinearBuckets(1, 1, DefaultMaxDepth),
		}),
	}
	m.registry.MustRegister(m.calls, m.aborts, m.dispatches)
	return m
}

// Registry returns the registry holding the host's collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Calls returns the invocation counter for p.
func (m *Metrics) Calls(p host.Primitive) prometheus.Counter {
	return m.calls.WithLabelValues(string(p))
}

// Aborts returns the abort counter for code.
func (m *Metrics) Aborts(code abort.Code) prometheus.Counter {
	return m.aborts.WithLabelValues(string(code))
}

func (m *Metrics) observeDispatch(depth int) {
	m.dispatches.Observe(float64(depth))
}
