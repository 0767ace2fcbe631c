package userrepo

import (
	"context"
	"errors"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
)

// ErrNotFound indicates the requested user does not exist.
var ErrNotFound = errors.New("user not found")

// Repository is a read-only accessor for persisted users.
// Users are owned by the host application; this module never writes them.
type Repository interface {
	GetByID(ctx context.Context, id domain.UserID) (domain.User, error)
}
