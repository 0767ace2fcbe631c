package disabled

import (
	"context"

	mailerport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/mailer"
)

// Dispatcher stands in for a provider that could not be initialised.
// Every Send is a no-op so callers keep working without mail credentials.
type Dispatcher struct{}

var _ mailerport.Dispatcher = Dispatcher{}

func New() Dispatcher { return Dispatcher{} }

func (Dispatcher) Available() bool { return false }

func (Dispatcher) Send(context.Context, mailerport.Message) (mailerport.Receipt, error) {
	return mailerport.Receipt{}, nil
}
