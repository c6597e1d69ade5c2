// Package memory holds in-process repositories used in development mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pnr_tracker/internal/domain/pnr"
	"pnr_tracker/internal/domain/subscription"
)

// SubscriptionRepository keeps subscriptions in a map guarded by a mutex.
// Values are cloned on the way in and out.
type SubscriptionRepository struct {
	mu   sync.Mutex
	subs map[string]*subscription.Subscription
	now  func() time.Time
}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{
		subs: make(map[string]*subscription.Subscription),
		now:  time.Now,
	}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.subs {
		if existing.UserID == sub.UserID && existing.PNRNumber == sub.PNRNumber {
			return subscription.ErrDuplicate
		}
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := r.now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if sub.StatusHistory == nil {
		sub.StatusHistory = []subscription.HistoryEntry{}
	}
	r.subs[sub.ID] = sub.Clone()
	return nil
}

func (r *SubscriptionRepository) GetForUser(ctx context.Context, userID, id string) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.UserID != userID {
		return nil, subscription.ErrNotFound
	}
	return sub.Clone(), nil
}

func (r *SubscriptionRepository) GetByUserAndPNR(ctx context.Context, userID, pnrNumber string) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		if sub.UserID == userID && sub.PNRNumber == pnrNumber {
			return sub.Clone(), nil
		}
	}
	return nil, subscription.ErrNotFound
}

func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*subscription.Subscription, error) {
	return r.list(func(s *subscription.Subscription) bool { return s.UserID == userID }), nil
}

func (r *SubscriptionRepository) ListActive(ctx context.Context) ([]*subscription.Subscription, error) {
	return r.list(func(s *subscription.Subscription) bool { return s.IsActive }), nil
}

func (r *SubscriptionRepository) list(keep func(*subscription.Subscription) bool) []*subscription.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*subscription.Subscription, 0)
	for _, sub := range r.subs {
		if keep(sub) {
			out = append(out, sub.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *SubscriptionRepository) Update(ctx context.Context, userID, id string, patch subscription.Patch) (*subscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.UserID != userID {
		return nil, subscription.ErrNotFound
	}
	patch.Apply(sub, r.now().UTC())
	sub.Version++
	return sub.Clone(), nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.UserID != userID {
		return subscription.ErrNotFound
	}
	delete(r.subs, id)
	return nil
}

func (r *SubscriptionRepository) RecordSnapshot(ctx context.Context, id string, snap pnr.StatusSnapshot, observedAt time.Time) (*subscription.Subscription, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return nil, false, subscription.ErrNotFound
	}
	changed := sub.ApplySnapshot(snap, observedAt)
	sub.Version++
	return sub.Clone(), changed, nil
}
