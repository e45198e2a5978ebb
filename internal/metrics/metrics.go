// Package metrics exposes Prometheus instrumentation for the monitoring
// core. All collectors live on a private registry so multiple
// coordinators can coexist in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors consumed by the coordinator and the
// feedback dispatcher.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal              *prometheus.CounterVec
	SignificantChangesTotal prometheus.Counter
	SessionsActive          prometheus.Gauge

	FeedbackTriggeredTotal prometheus.Counter
	FeedbackRejectedTotal  prometheus.Counter
	FeedbackQueuedTotal    prometheus.Counter
	FeedbackActive         prometheus.Gauge
	FeedbackQueueDepth     prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		TicksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "driftwatch_ticks_total",
			Help: "Monitoring ticks executed, by result.",
		}, []string{"result"}),
		SignificantChangesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_significant_changes_total",
			Help: "Ticks whose difference exceeded the significance threshold.",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "driftwatch_sessions_active",
			Help: "Monitoring sessions currently held in memory.",
		}),
		FeedbackTriggeredTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_feedback_triggered_total",
			Help: "Feedback analyses started.",
		}),
		FeedbackRejectedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_feedback_rejected_total",
			Help: "Feedback requests rejected by the per-session rate limit.",
		}),
		FeedbackQueuedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "driftwatch_feedback_queued_total",
			Help: "Feedback requests queued behind the concurrency bound.",
		}),
		FeedbackActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "driftwatch_feedback_active",
			Help: "Feedback analyses currently executing.",
		}),
		FeedbackQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "driftwatch_feedback_queue_depth",
			Help: "Feedback requests waiting for a free slot.",
		}),
	}
}

// Registry returns the registry backing the collectors, for the ops
// HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
