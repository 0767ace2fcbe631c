package triprepo

import (
	"context"
	"errors"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
)

var ErrNotFound = errors.New("trip not found")

// Repository is a read-only accessor for persisted trips.
type Repository interface {
	GetByID(ctx context.Context, id domain.TripID) (domain.Trip, error)
}
