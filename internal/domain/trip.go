package domain

import "time"

// Trip is a snapshot of a trip used to compose notifications.
// Callers pass both the previous and the updated snapshot when dates change.
type Trip struct {
	ID        TripID
	Title     string
	StartDate time.Time // date-only semantics at the edges
	EndDate   time.Time // date-only semantics at the edges
	CreatorID UserID
}

// Participant is a recipient of trip-wide notifications.
type Participant struct {
	Name  string
	Email string
}

type ParticipationAction string

const (
	ParticipationAccepted ParticipationAction = "accepted"
	ParticipationRejected ParticipationAction = "rejected"
)

// ParticipationRequest is a pending request by a user to join a trip.
type ParticipationRequest struct {
	ID      ParticipationID
	TripID  TripID
	UserID  UserID
	Message *string
}
