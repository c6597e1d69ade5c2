// Package mongostore keeps subscriptions, the notification log and users in MongoDB. It shares
// the users, pnrsubscriptions and notificationhistories collections with the account service, so
// documents use its camelCase field names and ids may be ObjectIds or strings.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	SubscriptionsCollection = "pnrsubscriptions"
	NotificationsCollection = "notificationhistories"
	UsersCollection         = "users"
)

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique (user, PNR) index and the lookup indexes.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(SubscriptionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "pnrNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("user_pnr_unique"),
		},
		{
			Keys:    bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("active_created"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription indexes: %w", err)
	}

	_, err = db.Collection(NotificationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "pnrSubscriptionId", Value: 1},
			{Key: "createdAt", Value: 1},
		},
		Options: options.Index().SetName("user_subscription_created"),
	})
	if err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}
	return nil
}
