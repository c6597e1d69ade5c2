package app

import "pnr_tracker/internal/domain/notification"

// Metrics receives pass and delivery observations. A nil Metrics is replaced by a no-op.
type Metrics interface {
	ObservePass(summary Summary)
	ObserveDelivery(channel notification.Channel, status notification.DeliveryStatus)
}

type noopMetrics struct{}

func (noopMetrics) ObservePass(Summary) {}

func (noopMetrics) ObserveDelivery(notification.Channel, notification.DeliveryStatus) {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
