package participantrepo

import (
	"context"
	"errors"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
)

var (
	// ErrNotFound indicates the requested participation request does not exist.
	ErrNotFound = errors.New("participation request not found")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Membership is the persistence shape of a user's participation in a trip.
type Membership struct {
	TripID domain.TripID
	UserID domain.UserID
	Name   string
	Email  string
	Status Status
}

// Repository is a read-only accessor for trip participation records.
//
// Result ordering expectations:
// - ListByTrip returns participants ordered by Name ascending, then Email, so batch sends are deterministic.
type Repository interface {
	// ListByTrip returns the accepted participants of a trip. The creator is included when
	// they are recorded as a participant; filtering them out is the caller's concern.
	ListByTrip(ctx context.Context, tripID domain.TripID) ([]domain.Participant, error)

	// GetRequest returns a participation request by ID. If it does not exist, ErrNotFound is returned.
	GetRequest(ctx context.Context, id domain.ParticipationID) (domain.ParticipationRequest, error)
}
