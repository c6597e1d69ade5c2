package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pnr_tracker/internal/domain/pnr"
	"pnr_tracker/internal/domain/subscription"
)

const maxVersionRetries = 5

// ErrVersionConflict is returned when a status write kept losing to concurrent writers.
var ErrVersionConflict = errors.New("subscription was modified concurrently")

type SubscriptionRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewSubscriptionRepository(db *mongo.Database) *SubscriptionRepository {
	return &SubscriptionRepository{col: db.Collection(SubscriptionsCollection), now: time.Now}
}

func (r *SubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := r.now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	s.Version = 0
	if s.StatusHistory == nil {
		s.StatusHistory = []subscription.HistoryEntry{}
	}

	if _, err := r.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return subscription.ErrDuplicate
		}
		return fmt.Errorf("error creating subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) findOne(ctx context.Context, filter bson.M, what string) (*subscription.Subscription, error) {
	var s subscription.Subscription
	if err := r.col.FindOne(ctx, filter).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, subscription.ErrNotFound
		}
		return nil, fmt.Errorf("error getting subscription by %s: %w", what, err)
	}
	if s.StatusHistory == nil {
		s.StatusHistory = []subscription.HistoryEntry{}
	}
	return &s, nil
}

func (r *SubscriptionRepository) GetForUser(ctx context.Context, userID, id string) (*subscription.Subscription, error) {
	return r.findOne(ctx, bson.M{"_id": idValue(id), "userId": idValue(userID)}, "ID")
}

func (r *SubscriptionRepository) GetByUserAndPNR(ctx context.Context, userID, pnrNumber string) (*subscription.Subscription, error) {
	return r.findOne(ctx, bson.M{"userId": idValue(userID), "pnrNumber": pnrNumber}, "PNR")
}

func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*subscription.Subscription, error) {
	return r.find(ctx, bson.M{"userId": idValue(userID)}, "user subscriptions")
}

func (r *SubscriptionRepository) ListActive(ctx context.Context) ([]*subscription.Subscription, error) {
	return r.find(ctx, bson.M{"isActive": true}, "active subscriptions")
}

func (r *SubscriptionRepository) find(ctx context.Context, filter bson.M, what string) ([]*subscription.Subscription, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", what, err)
	}
	defer cursor.Close(ctx)

	subs := make([]*subscription.Subscription, 0)
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", what, err)
	}
	for _, s := range subs {
		if s.StatusHistory == nil {
			s.StatusHistory = []subscription.HistoryEntry{}
		}
	}
	return subs, nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, userID, id string, patch subscription.Patch) (*subscription.Subscription, error) {
	set := bson.M{"updatedAt": r.now().UTC()}
	if patch.PassengerName != nil {
		set["passengerName"] = *patch.PassengerName
	}
	if patch.Journey != nil {
		set["journeyDetails"] = *patch.Journey
	}
	if patch.IsActive != nil {
		set["isActive"] = *patch.IsActive
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var s subscription.Subscription
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": idValue(id), "userId": idValue(userID)},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
		opts,
	).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, subscription.ErrNotFound
		}
		return nil, fmt.Errorf("error updating subscription: %w", err)
	}
	if s.StatusHistory == nil {
		s.StatusHistory = []subscription.HistoryEntry{}
	}
	return &s, nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": idValue(id), "userId": idValue(userID)})
	if err != nil {
		return fmt.Errorf("error deleting subscription: %w", err)
	}
	if res.DeletedCount == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

// RecordSnapshot uses the version field for optimistic concurrency: the write only lands if
// nobody else wrote since the read, otherwise the read-modify-write is retried.
func (r *SubscriptionRepository) RecordSnapshot(ctx context.Context, id string, snap pnr.StatusSnapshot, observedAt time.Time) (*subscription.Subscription, bool, error) {
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		s, err := r.findOne(ctx, bson.M{"_id": idValue(id)}, "ID")
		if err != nil {
			return nil, false, err
		}
		readVersion := s.Version
		changed := s.ApplySnapshot(snap, observedAt)

		update := bson.M{
			"$set": bson.M{
				"currentStatus": s.CurrentStatus,
				"lastChecked":   observedAt,
				"updatedAt":     observedAt,
			},
			"$inc": bson.M{"version": 1},
		}
		if changed {
			update["$push"] = bson.M{"statusHistory": s.StatusHistory[len(s.StatusHistory)-1]}
		}

		res, err := r.col.UpdateOne(ctx, bson.M{"_id": idValue(id), "version": versionValue(readVersion)}, update)
		if err != nil {
			return nil, false, fmt.Errorf("error recording status: %w", err)
		}
		if res.MatchedCount == 1 {
			s.Version = readVersion + 1
			return s, changed, nil
		}
	}
	return nil, false, fmt.Errorf("recording status for %s: %w", id, ErrVersionConflict)
}
