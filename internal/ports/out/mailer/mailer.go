package mailer

import (
	"context"
	"errors"
)

// ErrRejected indicates the provider answered but refused the message.
var ErrRejected = errors.New("mail provider rejected message")

// Message is a fully rendered email. It is built once and consumed by a single Send.
type Message struct {
	From     string
	FromName string
	To       string
	ToName   string
	Subject  string
	HTML     string
}

// Receipt describes the outcome of one accepted send attempt.
type Receipt struct {
	Provider   string
	MessageID  string
	StatusCode int
}

// Dispatcher delivers messages through one configured provider account.
//
// Each Send is a single best-effort attempt: implementations must not retry, queue or rate-limit.
// A dispatcher whose provider could not be initialised reports Available() == false and turns
// Send into a no-op returning a zero Receipt and a nil error.
type Dispatcher interface {
	Available() bool
	Send(ctx context.Context, msg Message) (Receipt, error)
}
