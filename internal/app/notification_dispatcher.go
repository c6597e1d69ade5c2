// internal/app/notification_dispatcher.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pnr_tracker/internal/domain/notification"
	"pnr_tracker/internal/domain/transport"
)

const defaultSendTimeout = 15 * time.Second

// Correlation ties a delivery attempt to the user and subscription it concerns.
type Correlation struct {
	UserID         string
	SubscriptionID string
}

// DeliveryOutcome is what the caller learns about one delivery attempt.
type DeliveryOutcome struct {
	RecordID string
	Status   notification.DeliveryStatus
	Error    string
}

// NotificationDispatcher sends one notification per call and writes exactly one audit record
// for it. It never returns an error: the record is the outcome.
type NotificationDispatcher struct {
	records     notification.Repository
	transports  map[notification.Channel]transport.Transport
	sendTimeout time.Duration
	metrics     Metrics
	logger      *logrus.Entry
	now         func() time.Time
}

func NewNotificationDispatcher(
	records notification.Repository,
	transports map[notification.Channel]transport.Transport,
	sendTimeout time.Duration,
	metrics Metrics,
	logger *logrus.Entry,
) *NotificationDispatcher {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	registered := make(map[notification.Channel]transport.Transport, len(transports))
	for ch, t := range transports {
		if t != nil {
			registered[ch] = t
		}
	}
	return &NotificationDispatcher{
		records:     records,
		transports:  registered,
		sendTimeout: sendTimeout,
		metrics:     metricsOrNoop(metrics),
		logger:      componentLogger(logger, "notification_dispatcher"),
		now:         time.Now,
	}
}

// Supports reports whether a transport is configured for ch.
func (d *NotificationDispatcher) Supports(ch notification.Channel) bool {
	_, ok := d.transports[ch]
	return ok
}

// Send makes a single delivery attempt to recipient over channel.
func (d *NotificationDispatcher) Send(ctx context.Context, channel notification.Channel, recipient, subject, body string, corr Correlation) DeliveryOutcome {
	logCtx := d.logger.WithFields(logrus.Fields{
		"channel":         channel,
		"user_id":         corr.UserID,
		"subscription_id": corr.SubscriptionID,
	})

	rec := &notification.Record{
		UserID:         corr.UserID,
		SubscriptionID: corr.SubscriptionID,
		Channel:        channel,
		Subject:        subject,
		Message:        body,
		DeliveryStatus: notification.StatusPending,
		CreatedAt:      d.now().UTC(),
	}

	err := d.deliver(ctx, transport.Message{
		Channel:   channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		rec.DeliveryStatus = notification.StatusFailed
		rec.ErrorMessage = err.Error()
		if rec.ErrorMessage == "" {
			rec.ErrorMessage = "transport returned an empty error"
		}
		logCtx.WithError(err).Warn("Notification delivery failed")
	} else {
		deliveredAt := d.now().UTC()
		rec.DeliveryStatus = notification.StatusSent
		rec.DeliveredAt = &deliveredAt
		logCtx.Info("Notification delivered")
	}

	// The audit write must survive a caller that has already given up.
	if errCreate := d.records.Create(context.WithoutCancel(ctx), rec); errCreate != nil {
		logCtx.WithError(errCreate).Error("Failed to write notification record")
	}
	d.metrics.ObserveDelivery(channel, rec.DeliveryStatus)

	return DeliveryOutcome{
		RecordID: rec.ID,
		Status:   rec.DeliveryStatus,
		Error:    rec.ErrorMessage,
	}
}

func (d *NotificationDispatcher) deliver(ctx context.Context, msg transport.Message) (err error) {
	t, ok := d.transports[msg.Channel]
	if !ok {
		return fmt.Errorf("no transport configured for channel %q", msg.Channel)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return t.Send(sendCtx, msg)
}
