package domain

// UserID is an internal identifier for a user account.
type UserID string

// TripID is an internal identifier for a trip record.
type TripID string

// ParticipationID identifies a request to join a trip.
type ParticipationID string
