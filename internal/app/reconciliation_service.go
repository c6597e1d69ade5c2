// internal/app/reconciliation_service.go
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pnr_tracker/internal/domain/notification"
	"pnr_tracker/internal/domain/pnr"
	"pnr_tracker/internal/domain/subscription"
	"pnr_tracker/internal/domain/user"
)

const defaultWorkers = 4

// notificationChannels is the order in which a status change is fanned out.
var notificationChannels = []notification.Channel{
	notification.ChannelEmail,
	notification.ChannelSMS,
	notification.ChannelTelegram,
}

// Summary describes one reconciliation pass.
// Checked counts successful fetches that were recorded, Changed the label changes among
// them and Failed the subscriptions skipped this pass.
type Summary struct {
	Total        int
	Checked      int
	Changed      int
	Failed       int
	Notified     int
	NotifyFailed int
	StartedAt    time.Time
	Duration     time.Duration
}

// RefreshResult is returned by the on-demand path.
// Subscription is nil when the caller does not track the PNR.
type RefreshResult struct {
	Snapshot     pnr.StatusSnapshot
	Changed      bool
	Subscription *subscription.Subscription
}

// ReconciliationService re-fetches live status for subscriptions, records transitions and
// notifies owners about them.
type ReconciliationService struct {
	subs       subscription.Repository
	users      user.Repository
	fetcher    pnr.Fetcher
	dispatcher *NotificationDispatcher
	workers    int
	metrics    Metrics
	logger     *logrus.Entry
	now        func() time.Time
}

func NewReconciliationService(
	subs subscription.Repository,
	users user.Repository,
	fetcher pnr.Fetcher,
	dispatcher *NotificationDispatcher,
	workers int,
	metrics Metrics,
	logger *logrus.Entry,
) *ReconciliationService {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &ReconciliationService{
		subs:       subs,
		users:      users,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		workers:    workers,
		metrics:    metricsOrNoop(metrics),
		logger:     componentLogger(logger, "reconciliation"),
		now:        time.Now,
	}
}

type itemOutcome struct {
	checked      bool
	changed      bool
	notified     int
	notifyFailed int
}

// ReconcileAll runs one pass over a snapshot of the active subscriptions.
// A failing subscription is logged and counted; it never stops the pass. The returned
// error is set only when the active set itself could not be read.
func (s *ReconciliationService) ReconcileAll(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: s.now()}

	subs, err := s.subs.ListActive(ctx)
	if err != nil {
		summary.Duration = time.Since(summary.StartedAt)
		s.logger.WithError(err).Error("Failed to list active subscriptions")
		return summary, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	summary.Total = len(subs)
	s.logger.WithField("active", len(subs)).Info("Reconciliation pass started")

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.workers)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			out := s.reconcileSubscription(ctx, sub)
			mu.Lock()
			defer mu.Unlock()
			if out.checked {
				summary.Checked++
			} else {
				summary.Failed++
			}
			if out.changed {
				summary.Changed++
			}
			summary.Notified += out.notified
			summary.NotifyFailed += out.notifyFailed
			return nil
		})
	}
	_ = g.Wait()

	summary.Duration = time.Since(summary.StartedAt)
	s.metrics.ObservePass(summary)
	s.logger.WithFields(logrus.Fields{
		"total":         summary.Total,
		"checked":       summary.Checked,
		"changed":       summary.Changed,
		"failed":        summary.Failed,
		"notified":      summary.Notified,
		"notify_failed": summary.NotifyFailed,
		"duration":      summary.Duration.String(),
	}).Info("Reconciliation pass finished")
	return summary, nil
}

// reconcileSubscription handles one subscription. Every failure, including a panic, is
// contained here.
func (s *ReconciliationService) reconcileSubscription(ctx context.Context, sub *subscription.Subscription) (out itemOutcome) {
	logCtx := s.logger.WithFields(logrus.Fields{
		"pnr":             sub.PNRNumber,
		"subscription_id": sub.ID,
		"user_id":         sub.UserID,
	})
	defer func() {
		if r := recover(); r != nil {
			logCtx.WithField("panic", r).Error("Recovered from panic while checking PNR")
		}
	}()

	snap, err := s.fetcher.FetchStatus(ctx, sub.PNRNumber)
	if err != nil {
		logCtx.WithError(err).Error("Error checking PNR; will retry next pass")
		return itemOutcome{}
	}

	updated, changed, err := s.subs.RecordSnapshot(ctx, sub.ID, snap, s.now().UTC())
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			logCtx.Warn("Subscription removed during pass; status not recorded")
		} else {
			logCtx.WithError(err).Error("Failed to record PNR status")
		}
		return itemOutcome{}
	}

	out = itemOutcome{checked: true, changed: changed}
	if !changed {
		logCtx.Debug("PNR status unchanged")
		return out
	}

	logCtx.WithField("status", snap.Status).Info("PNR status changed")
	out.notified, out.notifyFailed = s.notifyStatusChange(ctx, updated, snap, logCtx)
	return out
}

// notifyStatusChange dispatches the change to every channel the owner opted in to.
// The status write has already been committed; nothing here can undo it.
func (s *ReconciliationService) notifyStatusChange(ctx context.Context, sub *subscription.Subscription, snap pnr.StatusSnapshot, logCtx *logrus.Entry) (sent, failed int) {
	if s.dispatcher == nil {
		return 0, 0
	}
	owner, err := s.users.GetByID(ctx, sub.UserID)
	if err != nil {
		logCtx.WithError(err).Warn("Could not load subscription owner; skipping notification")
		return 0, 0
	}

	subject, body := renderStatusChange(owner, sub, snap)
	corr := Correlation{UserID: owner.ID, SubscriptionID: sub.ID}
	for _, ch := range notificationChannels {
		if !s.dispatcher.Supports(ch) {
			continue
		}
		recipient, ok := owner.Recipient(ch)
		if !ok {
			continue
		}
		outcome := s.dispatcher.Send(ctx, ch, recipient, subject, body, corr)
		if outcome.Status == notification.StatusSent {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

// RefreshSubscription is the synchronous single-subscription variant used by the on-demand
// path. It applies the same change rule as a scheduled pass but does not notify; fetch
// failures are returned to the caller.
func (s *ReconciliationService) RefreshSubscription(ctx context.Context, userID, id string) (*RefreshResult, error) {
	sub, err := s.subs.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, sub)
}

// StatusByPNR fetches the live status of number and, when the caller tracks that PNR,
// records it on their subscription.
func (s *ReconciliationService) StatusByPNR(ctx context.Context, userID, number string) (*RefreshResult, error) {
	if err := pnr.ValidateNumber(number); err != nil {
		return nil, err
	}
	snap, err := s.fetcher.FetchStatus(ctx, number)
	if err != nil {
		s.logger.WithError(err).WithField("pnr", number).Warn("On-demand status fetch failed")
		return nil, err
	}

	sub, err := s.subs.GetByUserAndPNR(ctx, userID, number)
	if errors.Is(err, subscription.ErrNotFound) {
		return &RefreshResult{Snapshot: snap}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up subscription: %w", err)
	}
	return s.record(ctx, sub, snap)
}

func (s *ReconciliationService) refresh(ctx context.Context, sub *subscription.Subscription) (*RefreshResult, error) {
	snap, err := s.fetcher.FetchStatus(ctx, sub.PNRNumber)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"pnr":             sub.PNRNumber,
			"subscription_id": sub.ID,
		}).Warn("On-demand status fetch failed")
		return nil, err
	}
	return s.record(ctx, sub, snap)
}

func (s *ReconciliationService) record(ctx context.Context, sub *subscription.Subscription, snap pnr.StatusSnapshot) (*RefreshResult, error) {
	updated, changed, err := s.subs.RecordSnapshot(ctx, sub.ID, snap, s.now().UTC())
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record PNR status: %w", err)
	}
	return &RefreshResult{Snapshot: snap, Changed: changed, Subscription: updated}, nil
}

func renderStatusChange(owner *user.User, sub *subscription.Subscription, snap pnr.StatusSnapshot) (subject, body string) {
	name := owner.FirstName
	if name == "" {
		name = "Traveller"
	}
	details, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		details = []byte(fmt.Sprintf("%+v", snap))
	}
	subject = fmt.Sprintf("PNR Update for %s", sub.PNRNumber)
	body = fmt.Sprintf("Dear %s,\n\nThe status of PNR %s has changed to: %s\n\nDetails: %s",
		name, sub.PNRNumber, snap.Status, details)
	return subject, body
}
