package sendgrid

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	mailerport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/mailer"
)

const ProviderName = "sendgrid"

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type Dispatcher struct {
	client  sendClient
	sandbox bool
	timeout time.Duration
	logger  *zap.Logger
}

var _ mailerport.Dispatcher = (*Dispatcher)(nil)

type Options struct {
	APIKey string
	// Sandbox asks SendGrid to validate the request without delivering it.
	Sandbox bool
	Timeout time.Duration
}

func New(opts Options, logger *zap.Logger) *Dispatcher {
	return newWithClient(sg.NewSendClient(opts.APIKey), opts, logger)
}

func newWithClient(c sendClient, opts Options, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{client: c, sandbox: opts.Sandbox, timeout: opts.Timeout, logger: logger}
}

func (d *Dispatcher) Available() bool { return true }

// Send makes exactly one API call. Non-2xx answers are reported as mailer.ErrRejected.
func (d *Dispatcher) Send(ctx context.Context, msg mailerport.Message) (mailerport.Receipt, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	from := mail.NewEmail(msg.FromName, msg.From)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, "", msg.HTML)
	if d.sandbox {
		enable := true
		message.SetMailSettings(&mail.MailSettings{
			SandboxMode: &mail.Setting{Enable: &enable},
		})
	}

	resp, err := d.client.SendWithContext(ctx, message)
	if err != nil {
		return mailerport.Receipt{}, fmt.Errorf("sendgrid send: %w", err)
	}
	rec := mailerport.Receipt{
		Provider:   ProviderName,
		StatusCode: resp.StatusCode,
		MessageID:  http.Header(resp.Headers).Get("X-Message-Id"),
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Debug("sendgrid rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("body", resp.Body),
		)
		return rec, fmt.Errorf("%w: sendgrid status %d", mailerport.ErrRejected, resp.StatusCode)
	}
	return rec, nil
}
