// internal/app/subscription_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pnr_tracker/internal/domain/notification"
	"pnr_tracker/internal/domain/pnr"
	"pnr_tracker/internal/domain/subscription"
	"pnr_tracker/internal/domain/user"
)

// SubscribeInput carries the fields a user supplies when starting to track a PNR.
// Only PNRNumber is required.
type SubscribeInput struct {
	PNRNumber     string
	PassengerName string
	Journey       subscription.JourneyDetails
}

// SubscriptionService handles the user-facing lifecycle of subscriptions.
type SubscriptionService struct {
	subs       subscription.Repository
	records    notification.Repository
	users      user.Repository
	dispatcher *NotificationDispatcher
	logger     *logrus.Entry

	background sync.WaitGroup
}

func NewSubscriptionService(
	subs subscription.Repository,
	records notification.Repository,
	users user.Repository,
	dispatcher *NotificationDispatcher,
	logger *logrus.Entry,
) *SubscriptionService {
	return &SubscriptionService{
		subs:       subs,
		records:    records,
		users:      users,
		dispatcher: dispatcher,
		logger:     componentLogger(logger, "subscriptions"),
	}
}

// Subscribe starts tracking input.PNRNumber for userID. A duplicate is rejected with
// subscription.ErrDuplicate before anything is written.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID string, input SubscribeInput) (*subscription.Subscription, error) {
	number := strings.TrimSpace(input.PNRNumber)
	if err := pnr.ValidateNumber(number); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.PassengerName)

	_, err := s.subs.GetByUserAndPNR(ctx, userID, number)
	if err == nil {
		return nil, subscription.ErrDuplicate
	}
	if !errors.Is(err, subscription.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}

	sub := &subscription.Subscription{
		UserID:        userID,
		PNRNumber:     number,
		PassengerName: name,
		Journey:       input.Journey,
		StatusHistory: []subscription.HistoryEntry{},
		IsActive:      true,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		if errors.Is(err, subscription.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"pnr":             number,
		"subscription_id": sub.ID,
	}).Info("Subscription created")

	s.confirmAsync(ctx, sub)
	return sub, nil
}

// confirmAsync sends the subscription confirmation off the request path. Its outcome is
// visible only through the notification record and the log.
func (s *SubscriptionService) confirmAsync(ctx context.Context, sub *subscription.Subscription) {
	if s.dispatcher == nil || s.users == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	snapshot := sub.Clone()

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithField("panic", r).Error("Recovered from panic while sending subscription confirmation")
			}
		}()

		owner, err := s.users.GetByID(bg, snapshot.UserID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", snapshot.UserID).Warn("Could not load user for subscription confirmation")
			return
		}
		recipient, ok := owner.Recipient(notification.ChannelEmail)
		if !ok || !s.dispatcher.Supports(notification.ChannelEmail) {
			return
		}
		subject, body := renderSubscribed(owner, snapshot)
		s.dispatcher.Send(bg, notification.ChannelEmail, recipient, subject, body, Correlation{
			UserID:         owner.ID,
			SubscriptionID: snapshot.ID,
		})
	}()
}

// Wait blocks until background confirmations have finished or ctx is done.
func (s *SubscriptionService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SubscriptionService) List(ctx context.Context, userID string) ([]*subscription.Subscription, error) {
	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *SubscriptionService) Get(ctx context.Context, userID, id string) (*subscription.Subscription, error) {
	return s.subs.GetForUser(ctx, userID, id)
}

// Update patches the user-writable fields. Deactivating keeps the history intact.
func (s *SubscriptionService) Update(ctx context.Context, userID, id string, patch subscription.Patch) (*subscription.Subscription, error) {
	if patch.PassengerName != nil {
		trimmed := strings.TrimSpace(*patch.PassengerName)
		patch.PassengerName = &trimmed
	}
	sub, err := s.subs.Update(ctx, userID, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"subscription_id": id,
		"is_active":       sub.IsActive,
	}).Info("Subscription updated")
	return sub, nil
}

func (s *SubscriptionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.subs.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"subscription_id": id,
	}).Info("Subscription deleted")
	return nil
}

// Notifications returns the delivery audit log for one of the user's subscriptions.
func (s *SubscriptionService) Notifications(ctx context.Context, userID, id string) ([]*notification.Record, error) {
	if _, err := s.subs.GetForUser(ctx, userID, id); err != nil {
		return nil, err
	}
	records, err := s.records.ListBySubscription(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return records, nil
}

func renderSubscribed(owner *user.User, sub *subscription.Subscription) (subject, body string) {
	name := owner.FirstName
	if name == "" {
		name = "Traveller"
	}
	tracked := sub.PNRNumber
	if sub.PassengerName != "" {
		tracked += " for " + sub.PassengerName
	}
	subject = fmt.Sprintf("Tracking PNR %s", sub.PNRNumber)
	body = fmt.Sprintf("Dear %s,\n\nWe are now tracking PNR %s and will let you know when its status changes.\n\nSubscribed at: %s",
		name, tracked, sub.CreatedAt.Format(time.RFC1123))
	return subject, body
}
