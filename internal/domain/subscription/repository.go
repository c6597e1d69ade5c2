// internal/domain/subscription/repository.go
package subscription

import (
	"context"
	"errors"
	"time"

	"pnr_tracker/internal/domain/pnr"
)

var (
	ErrNotFound  = errors.New("subscription not found")
	ErrDuplicate = errors.New("already subscribed to this PNR")
)

// Repository defines persistence for subscriptions.
type Repository interface {
	// Create stores a new subscription. It returns ErrDuplicate when the user
	// already tracks the same PNR and leaves existing data untouched.
	Create(ctx context.Context, sub *Subscription) error
	// GetForUser returns the subscription only when it belongs to userID.
	GetForUser(ctx context.Context, userID, id string) (*Subscription, error)
	GetByUserAndPNR(ctx context.Context, userID, pnrNumber string) (*Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*Subscription, error)
	// ListActive returns a point-in-time snapshot of all active subscriptions.
	ListActive(ctx context.Context) ([]*Subscription, error)
	Update(ctx context.Context, userID, id string, patch Patch) (*Subscription, error)
	Delete(ctx context.Context, userID, id string) error

	// RecordSnapshot applies snap to the subscription with ApplySnapshot as one
	// serialized read-modify-write and reports whether the status label changed.
	RecordSnapshot(ctx context.Context, id string, snap pnr.StatusSnapshot, observedAt time.Time) (*Subscription, bool, error)
}
