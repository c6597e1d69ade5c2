package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pnr_tracker/internal/app"
	"pnr_tracker/internal/domain/notification"
)

const Namespace = "pnr_tracker"

// Metrics holds all prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	PassesTotal          prometheus.Counter
	PassesSkipped        *prometheus.CounterVec
	SubscriptionsChecked prometheus.Counter
	StatusChanges        prometheus.Counter
	FetchFailures        prometheus.Counter
	Notifications        *prometheus.CounterVec
	PassDuration         prometheus.Histogram
}

// NewMetrics creates the metrics on a private registry that also carries the Go and process
// collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PassesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconcile_passes_total",
			Help:      "The total number of completed reconciliation passes",
		}),
		PassesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconcile_passes_skipped_total",
			Help:      "Scheduler ticks that did not start a pass",
		}, []string{"reason"}),
		SubscriptionsChecked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "subscriptions_checked_total",
			Help:      "Subscriptions whose status was fetched and recorded",
		}),
		StatusChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "status_changes_total",
			Help:      "Detected status label changes",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fetch_failures_total",
			Help:      "Subscriptions skipped in a pass because of a failure",
		}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by channel and outcome",
		}, []string{"channel", "status"}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "reconcile_pass_duration_seconds",
			Help:      "Time taken by one reconciliation pass",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
	}
}

func (m *Metrics) ObservePass(s app.Summary) {
	m.PassesTotal.Inc()
	m.SubscriptionsChecked.Add(float64(s.Checked))
	m.StatusChanges.Add(float64(s.Changed))
	m.FetchFailures.Add(float64(s.Failed))
	m.PassDuration.Observe(s.Duration.Seconds())
}

func (m *Metrics) ObserveDelivery(channel notification.Channel, status notification.DeliveryStatus) {
	m.Notifications.WithLabelValues(string(channel), string(status)).Inc()
}

func (m *Metrics) ObserveSkippedPass(reason string) {
	m.PassesSkipped.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
