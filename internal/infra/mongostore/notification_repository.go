package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pnr_tracker/internal/domain/notification"
)

type NotificationRepository struct {
	col *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{col: db.Collection(NotificationsCollection)}
}

func (r *NotificationRepository) Create(ctx context.Context, rec *notification.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if _, err := r.col.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("error creating notification record: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListBySubscription(ctx context.Context, userID, subscriptionID string) ([]*notification.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"userId": idValue(userID), "pnrSubscriptionId": idValue(subscriptionID)}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing notification records: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*notification.Record, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("error decoding notification records: %w", err)
	}
	return records, nil
}
