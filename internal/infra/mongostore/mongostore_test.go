package mongostore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"pnr_tracker/internal/domain/notification"
	"pnr_tracker/internal/domain/pnr"
	"pnr_tracker/internal/domain/subscription"
	"pnr_tracker/internal/domain/user"
)

func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)

	db := client.Database("pnr_tracker_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	require.NoError(t, EnsureIndexes(ctx, db))
	return db
}

func TestSubscriptionRepository_Lifecycle(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewSubscriptionRepository(db)

	sub := &subscription.Subscription{UserID: "u1", PNRNumber: "1234567890", PassengerName: "Asha", IsActive: true}
	require.NoError(t, repo.Create(ctx, sub))

	dup := &subscription.Subscription{UserID: "u1", PNRNumber: "1234567890", PassengerName: "Other", IsActive: true}
	assert.ErrorIs(t, repo.Create(ctx, dup), subscription.ErrDuplicate)

	_, err := repo.GetForUser(ctx, "u2", sub.ID)
	assert.ErrorIs(t, err, subscription.ErrNotFound)

	now := time.Now().UTC().Truncate(time.Millisecond)
	_, changed, err := repo.RecordSnapshot(ctx, sub.ID, pnr.StatusSnapshot{Status: "WL 3"}, now)
	require.NoError(t, err)
	assert.True(t, changed)
	_, changed, err = repo.RecordSnapshot(ctx, sub.ID, pnr.StatusSnapshot{Status: "WL 3", Coach: "S1"}, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
	_, changed, err = repo.RecordSnapshot(ctx, sub.ID, pnr.StatusSnapshot{Status: "CNF"}, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := repo.GetForUser(ctx, "u1", sub.ID)
	require.NoError(t, err)
	require.Len(t, got.StatusHistory, 2)
	assert.Equal(t, "WL 3", got.StatusHistory[0].Status)
	assert.Equal(t, "CNF", got.StatusHistory[1].Status)
	assert.Equal(t, int64(3), got.Version)

	inactive := false
	updated, err := repo.Update(ctx, "u1", sub.ID, subscription.Patch{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Len(t, updated.StatusHistory, 2)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, repo.Delete(ctx, "u2", sub.ID), subscription.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "u1", sub.ID))
}

func TestSubscriptionRepository_ConcurrentRecordSnapshot(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewSubscriptionRepository(db)
	sub := &subscription.Subscription{UserID: "u1", PNRNumber: "1234567890", PassengerName: "Asha", IsActive: true}
	require.NoError(t, repo.Create(ctx, sub))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changes int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := repo.RecordSnapshot(ctx, sub.ID, pnr.StatusSnapshot{Status: "CNF"}, time.Now().UTC())
			if err != nil {
				assert.ErrorIs(t, err, ErrVersionConflict)
				return
			}
			if changed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, changes)
	got, err := repo.GetForUser(ctx, "u1", sub.ID)
	require.NoError(t, err)
	assert.Len(t, got.StatusHistory, 1)
}

func TestNotificationAndUserRepositories(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	records := NewNotificationRepository(db)
	require.NoError(t, records.Create(ctx, &notification.Record{
		UserID: "u1", SubscriptionID: "s1", Channel: notification.ChannelEmail,
		Message: "body", DeliveryStatus: notification.StatusFailed, ErrorMessage: "535",
	}))
	list, err := records.ListBySubscription(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "535", list[0].ErrorMessage)

	_, err = db.Collection(UsersCollection).InsertOne(ctx, user.User{
		ID: "u1", Email: "asha@example.com", FirstName: "Asha", Preferences: user.Preferences{Email: true},
	})
	require.NoError(t, err)
	users := NewUserRepository(db)
	u, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.Preferences.Email)

	_, err = users.GetByID(ctx, "nobody")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestRepositories_ReadAccountServiceDocuments(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()

	userOID, subOID := primitive.NewObjectID(), primitive.NewObjectID()
	_, err := db.Collection(UsersCollection).InsertOne(ctx, bson.M{
		"_id":                     userOID,
		"email":                   "asha@example.com",
		"firstName":               "Asha",
		"notificationPreferences": bson.M{"email": true, "sms": false},
	})
	require.NoError(t, err)
	_, err = db.Collection(SubscriptionsCollection).InsertOne(ctx, bson.M{
		"_id":           subOID,
		"userId":        userOID,
		"pnrNumber":     "1234567890",
		"statusHistory": bson.A{},
		"isActive":      true,
	})
	require.NoError(t, err)

	u, err := NewUserRepository(db).GetByID(ctx, userOID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Asha", u.FirstName)
	assert.True(t, u.Preferences.Email)

	repo := NewSubscriptionRepository(db)
	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, subOID.Hex(), active[0].ID)
	assert.Equal(t, userOID.Hex(), active[0].UserID)

	updated, changed, err := repo.RecordSnapshot(ctx, subOID.Hex(), pnr.StatusSnapshot{Status: "CNF"}, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(1), updated.Version)

	got, err := repo.GetByUserAndPNR(ctx, userOID.Hex(), "1234567890")
	require.NoError(t, err)
	require.Len(t, got.StatusHistory, 1)
	assert.Equal(t, "CNF", got.CurrentStatus.Status)
}
