package smtp

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	mailerport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/mailer"
)

const ProviderName = "smtp"

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	// SSL selects implicit TLS (port 465); otherwise STARTTLS is used when offered.
	SSL bool
}

type Dispatcher struct {
	sender sender
	host   string
	logger *zap.Logger
}

var _ mailerport.Dispatcher = (*Dispatcher)(nil)

func New(opts Options, logger *zap.Logger) *Dispatcher {
	d := gomail.NewDialer(opts.Host, opts.Port, opts.User, opts.Password)
	d.SSL = opts.SSL
	return newWithSender(d, opts.Host, logger)
}

func newWithSender(s sender, host string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sender: s, host: host, logger: logger}
}

func (d *Dispatcher) Available() bool { return true }

// Send dials, delivers and closes one connection. The dial itself is bounded by gomail's connect timeout.
func (d *Dispatcher) Send(ctx context.Context, msg mailerport.Message) (mailerport.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return mailerport.Receipt{}, err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.From, msg.FromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := d.sender.DialAndSend(m); err != nil {
		d.logger.Debug("smtp send failed", zap.String("host", d.host), zap.Error(err))
		return mailerport.Receipt{}, fmt.Errorf("smtp send via %s: %w", d.host, err)
	}
	return mailerport.Receipt{Provider: ProviderName, StatusCode: 250}, nil
}
