package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pnr_tracker/internal/domain/notification"
)

// NotificationRepository is an append-only slice of records.
type NotificationRepository struct {
	mu      sync.Mutex
	records []notification.Record
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) Create(ctx context.Context, rec *notification.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	r.records = append(r.records, *rec)
	return nil
}

func (r *NotificationRepository) ListBySubscription(ctx context.Context, userID, subscriptionID string) ([]*notification.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*notification.Record, 0)
	for i := range r.records {
		if r.records[i].UserID == userID && r.records[i].SubscriptionID == subscriptionID {
			rec := r.records[i]
			out = append(out, &rec)
		}
	}
	return out, nil
}

// All returns every stored record in insertion order.
func (r *NotificationRepository) All() []notification.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Record(nil), r.records...)
}
