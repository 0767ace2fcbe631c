package idempotency

import (
	"context"
	"time"
)

// Key is the caller-provided idempotency key (Idempotency-Key header).
type Key string

// Fingerprint identifies a notification trigger for replay purposes.
//
// A retried trigger with the same key, caller, route and body replays the first response
// instead of sending the email a second time.
type Fingerprint struct {
	Key      Key
	Caller   string
	Route    string
	BodyHash string
}

// Record is the stored response replayed for a duplicate trigger.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists idempotency records.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
	// Claim stores rec only when fp has no record yet and reports whether this call stored it.
	// At most one concurrent Claim for the same fingerprint returns true.
	Claim(ctx context.Context, fp Fingerprint, rec Record) (bool, error)
	// Release deletes the record stored under fp, if any.
	Release(ctx context.Context, fp Fingerprint) error
}
