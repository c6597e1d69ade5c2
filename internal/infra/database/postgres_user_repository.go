package database

import (
	"context"
	"database/sql"
	"fmt"

	"pnr_tracker/internal/domain/user"
)

// PostgresUserRepository reads users owned by the account service.
type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT id, email, first_name, last_name, phone, telegram_chat_id, notify_email, notify_sms, notify_telegram
               FROM users WHERE id = $1`
	u := &user.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.TelegramChatID,
		&u.Preferences.Email, &u.Preferences.SMS, &u.Preferences.Telegram)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return u, nil
}
