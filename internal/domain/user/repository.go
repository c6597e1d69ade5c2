package user

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

// Repository is a read-only view of registered users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
