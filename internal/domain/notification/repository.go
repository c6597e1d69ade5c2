// internal/domain/notification/repository.go
package notification

import "context"

// Repository is the append-only notification audit log.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	ListBySubscription(ctx context.Context, userID, subscriptionID string) ([]*Record, error)
}
