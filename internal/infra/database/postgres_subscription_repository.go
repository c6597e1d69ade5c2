// internal/infra/database/postgres_subscription_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pnr_tracker/internal/domain/pnr"
	"pnr_tracker/internal/domain/subscription"
)

const uniqueViolation = "23505"

const subscriptionColumns = `id, user_id, pnr_number, passenger_name, journey_details, current_status,
       status_history, is_active, last_checked, version, created_at, updated_at`

type PostgresSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresSubscriptionRepository(db *sql.DB) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	s := &subscription.Subscription{}
	var journey, current, history []byte
	var lastChecked sql.NullTime
	err := row.Scan(&s.ID, &s.UserID, &s.PNRNumber, &s.PassengerName, &journey, &current,
		&history, &s.IsActive, &lastChecked, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(journey) > 0 {
		if err := json.Unmarshal(journey, &s.Journey); err != nil {
			return nil, fmt.Errorf("error decoding journey details of %s: %w", s.ID, err)
		}
	}
	if len(current) > 0 {
		s.CurrentStatus = &pnr.StatusSnapshot{}
		if err := json.Unmarshal(current, s.CurrentStatus); err != nil {
			return nil, fmt.Errorf("error decoding current status of %s: %w", s.ID, err)
		}
	}
	s.StatusHistory = []subscription.HistoryEntry{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &s.StatusHistory); err != nil {
			return nil, fmt.Errorf("error decoding status history of %s: %w", s.ID, err)
		}
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		s.LastChecked = &t
	}
	return s, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (r *PostgresSubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StatusHistory == nil {
		s.StatusHistory = []subscription.HistoryEntry{}
	}
	journey, err := json.Marshal(s.Journey)
	if err != nil {
		return fmt.Errorf("error encoding journey details: %w", err)
	}
	history, err := json.Marshal(s.StatusHistory)
	if err != nil {
		return fmt.Errorf("error encoding status history: %w", err)
	}

	// JSONB values are passed as strings; lib/pq would send []byte as bytea.
	query := `INSERT INTO pnr_subscriptions (id, user_id, pnr_number, passenger_name, journey_details, status_history, is_active)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query, s.ID, s.UserID, s.PNRNumber, s.PassengerName, string(journey), string(history), s.IsActive).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return subscription.ErrDuplicate
		}
		return fmt.Errorf("error creating subscription: %w", err)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) GetForUser(ctx context.Context, userID, id string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM pnr_subscriptions WHERE id = $1 AND user_id = $2`
	s, err := scanSubscription(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, subscription.ErrNotFound
		}
		return nil, fmt.Errorf("error getting subscription by ID: %w", err)
	}
	return s, nil
}

func (r *PostgresSubscriptionRepository) GetByUserAndPNR(ctx context.Context, userID, pnrNumber string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM pnr_subscriptions WHERE user_id = $1 AND pnr_number = $2`
	s, err := scanSubscription(r.db.QueryRowContext(ctx, query, userID, pnrNumber))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, subscription.ErrNotFound
		}
		return nil, fmt.Errorf("error getting subscription by PNR: %w", err)
	}
	return s, nil
}

func (r *PostgresSubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM pnr_subscriptions WHERE user_id = $1 ORDER BY created_at, id`
	return r.list(ctx, "user subscriptions", query, userID)
}

// ListActive reads all active subscriptions in one statement, which gives a consistent
// snapshot as of the start of the query.
func (r *PostgresSubscriptionRepository) ListActive(ctx context.Context) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM pnr_subscriptions WHERE is_active ORDER BY created_at, id`
	return r.list(ctx, "active subscriptions", query)
}

func (r *PostgresSubscriptionRepository) list(ctx context.Context, what, query string, args ...interface{}) ([]*subscription.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", what, err)
	}
	defer rows.Close()

	subs := make([]*subscription.Subscription, 0)
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", what, err)
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return subs, nil
}

func (r *PostgresSubscriptionRepository) Update(ctx context.Context, userID, id string, patch subscription.Patch) (*subscription.Subscription, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for subscription update: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	query := `SELECT ` + subscriptionColumns + ` FROM pnr_subscriptions WHERE id = $1 AND user_id = $2 FOR UPDATE`
	s, err := scanSubscription(txn.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, subscription.ErrNotFound
		}
		return nil, fmt.Errorf("error locking subscription: %w", err)
	}

	patch.Apply(s, time.Now().UTC())
	journey, err := json.Marshal(s.Journey)
	if err != nil {
		return nil, fmt.Errorf("error encoding journey details: %w", err)
	}

	err = txn.QueryRowContext(ctx, `UPDATE pnr_subscriptions
               SET passenger_name = $1, journey_details = $2, is_active = $3, updated_at = $4, version = version + 1
               WHERE id = $5
               RETURNING version`, s.PassengerName, string(journey), s.IsActive, s.UpdatedAt, s.ID).Scan(&s.Version)
	if err != nil {
		return nil, fmt.Errorf("error updating subscription: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit subscription update: %w", err)
	}
	return s, nil
}

func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pnr_subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("error deleting subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted rows: %w", err)
	}
	if n == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

// RecordSnapshot locks the row, applies the change rule and writes the result back in one
// transaction, so concurrent refreshes of the same subscription are serialized.
func (r *PostgresSubscriptionRepository) RecordSnapshot(ctx context.Context, id string, snap pnr.StatusSnapshot, observedAt time.Time) (*subscription.Subscription, bool, error) {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction for status update: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	query := `SELECT ` + subscriptionColumns + ` FROM pnr_subscriptions WHERE id = $1 FOR UPDATE`
	s, err := scanSubscription(txn.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, subscription.ErrNotFound
		}
		return nil, false, fmt.Errorf("error locking subscription: %w", err)
	}

	changed := s.ApplySnapshot(snap, observedAt)
	current, err := json.Marshal(s.CurrentStatus)
	if err != nil {
		return nil, false, fmt.Errorf("error encoding current status: %w", err)
	}
	history, err := json.Marshal(s.StatusHistory)
	if err != nil {
		return nil, false, fmt.Errorf("error encoding status history: %w", err)
	}

	err = txn.QueryRowContext(ctx, `UPDATE pnr_subscriptions
               SET current_status = $1, status_history = $2, last_checked = $3, updated_at = $4, version = version + 1
               WHERE id = $5
               RETURNING version`, string(current), string(history), observedAt, observedAt, id).Scan(&s.Version)
	if err != nil {
		return nil, false, fmt.Errorf("error recording status: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit status update: %w", err)
	}
	return s, changed, nil
}
