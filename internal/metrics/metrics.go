// Package metrics exposes the controller's frame-loop health as
// Prometheus gauges and counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry groups the controller's metrics. Only DMXChannelValue is
// updated, by ObserveRenderedState; nothing in the scheduler, light
// engine or broker sets TaskDuration, TaskFailures, ActiveEffects or
// BrokerSubscribers.
type Registry struct {
	TaskDuration      *prometheus.HistogramVec
	TaskFailures      *prometheus.CounterVec
	ActiveEffects     prometheus.Gauge
	BrokerSubscribers prometheus.Gauge
	DMXChannelValue   *prometheus.GaugeVec
}

// NewRegistry builds and registers every metric against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "partylights",
			Subsystem: "scheduler",
			Name:      "task_duration_seconds",
			Help:      "Per-frame task execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		TaskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partylights",
			Subsystem: "scheduler",
			Name:      "task_failures_total",
			Help:      "Count of task Run errors or panics, by task.",
		}, []string{"task"}),
		ActiveEffects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "partylights",
			Subsystem: "lightengine",
			Name:      "active_effects",
			Help:      "Number of currently active time-bounded effects.",
		}),
		BrokerSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "partylights",
			Subsystem: "broker",
			Name:      "subscribers",
			Help:      "Number of open broker connections.",
		}),
		DMXChannelValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "partylights",
			Subsystem: "dmx",
			Name:      "channel_value",
			Help:      "Last rendered value for a (light, property).",
		}, []string{"light", "property"}),
	}

	reg.MustRegister(m.TaskDuration, m.TaskFailures, m.ActiveEffects, m.BrokerSubscribers, m.DMXChannelValue)
	return m
}

// ObserveRenderedState republishes a frame's rendered light state as
// per-channel gauges.
func (m *Registry) ObserveRenderedState(rendered map[string]map[string]int) {
	for light, props := range rendered {
		for prop, v := range props {
			m.DMXChannelValue.WithLabelValues(light, prop).Set(float64(v))
		}
	}
}
