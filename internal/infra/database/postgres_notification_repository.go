// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pnr_tracker/internal/domain/notification"
)

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// Create inserts a write-once delivery record.
func (r *PostgresNotificationRepository) Create(ctx context.Context, rec *notification.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO notification_history (id, user_id, pnr_subscription_id, notification_type, subject, message,
                                               delivery_status, delivered_at, error_message, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.UserID, rec.SubscriptionID, rec.Channel, rec.Subject, rec.Message,
		rec.DeliveryStatus, rec.DeliveredAt, rec.ErrorMessage, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification record: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) ListBySubscription(ctx context.Context, userID, subscriptionID string) ([]*notification.Record, error) {
	query := `SELECT id, user_id, pnr_subscription_id, notification_type, subject, message, delivery_status,
                     delivered_at, error_message, created_at
               FROM notification_history
               WHERE user_id = $1 AND pnr_subscription_id = $2
               ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("error listing notification records: %w", err)
	}
	defer rows.Close()

	records := make([]*notification.Record, 0)
	for rows.Next() {
		rec := &notification.Record{}
		var deliveredAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SubscriptionID, &rec.Channel, &rec.Subject, &rec.Message,
			&rec.DeliveryStatus, &deliveredAt, &rec.ErrorMessage, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification record: %w", err)
		}
		if deliveredAt.Valid {
			t := deliveredAt.Time
			rec.DeliveredAt = &t
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification records: %w", err)
	}
	return records, nil
}
