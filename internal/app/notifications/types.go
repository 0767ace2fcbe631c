package notifications

import (
	"time"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/actiontoken"
)

// DateLayout is used for every date shown in notification emails.
const DateLayout = "Monday, January 2, 2006"

// MessageFallback replaces an empty join-request message.
const MessageFallback = "No message provided"

// Config holds the link bases and sender identity for composed emails.
type Config struct {
	BackendBaseURL  string
	FrontendBaseURL string

	FromAddress string
	FromName    string

	// MaxConcurrentSends bounds the trip date-change fan-out; 0 means one goroutine per recipient.
	MaxConcurrentSends int
}

// TokenIssuer signs action tokens for email links.
type TokenIssuer interface {
	Issue(p actiontoken.Payload, ttl time.Duration) (string, error)
}

// BatchResult tallies one trip date-change batch.
type BatchResult struct {
	Sent     int
	Failed   int
	Total    int
	Failures []RecipientFailure
}

// RecipientFailure records why one recipient of a batch was not sent to.
type RecipientFailure struct {
	Email string
	Err   error
}

// TripDatesChange describes a trip whose dates were edited, as reported by the caller.
// CreatorEmail and Participants are resolved from the accessors when left empty.
type TripDatesChange struct {
	TripID       domain.TripID
	Previous     domain.Trip
	CreatorEmail string
	Participants []domain.Participant
}
