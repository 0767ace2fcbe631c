package templates

import (
	"context"
	"errors"
)

// ErrNotFound indicates the named template does not exist in the store.
var ErrNotFound = errors.New("template not found")

// Names of the templates every store must provide.
const (
	VerifyEmail       = "verify_email.html"
	TripDatesModified = "trip_dates_modified.html"
	PendingRequest    = "pending_request.html"
)

// Store returns the raw text of a named template.
//
// Implementations do not cache: every Load is a fresh read so edited templates
// are picked up without a restart.
type Store interface {
	Load(ctx context.Context, name string) (string, error)
}
