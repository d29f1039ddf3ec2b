// Package metrics holds the prometheus collectors of the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gaggiuino"

// Metrics is a private registry with the tool and device collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	toolInvocations *prometheus.CounterVec
	deviceRequests  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		deviceRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_request_duration_seconds",
			Help:      "Duration of requests to the machine by operation and outcome.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation", "outcome"}),
	}
	m.registry.MustRegister(
		m.toolInvocations,
		m.deviceRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveToolInvocation(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolInvocations.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) ObserveDeviceRequest(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.deviceRequests.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
