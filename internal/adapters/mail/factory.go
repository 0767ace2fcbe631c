// Package mail selects the mail dispatcher for the configured provider.
package mail

import (
	"go.uber.org/zap"

	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/mail/disabled"
	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/mail/sendgrid"
	"github.com/Overland-East-Bay/trip-notifier/internal/adapters/mail/smtp"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/config"
	mailerport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/mailer"
)

// New returns the dispatcher for cfg.Provider, or the disabled dispatcher when
// the provider is switched off or lacks credentials.
func New(cfg config.MailConfig, logger *zap.Logger) mailerport.Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == config.MailProviderDisabled {
		logger.Info("mail dispatch disabled by configuration")
		return disabled.New()
	}
	if !cfg.HasCredentials() {
		logger.Warn("mail provider credentials missing; notification emails will not be sent",
			zap.String("provider", string(cfg.Provider)),
		)
		return disabled.New()
	}

	switch cfg.Provider {
	case config.MailProviderSMTP:
		logger.Info("mail dispatch via smtp", zap.String("host", cfg.SMTPHost), zap.Int("port", cfg.SMTPPort))
		return smtp.New(smtp.Options{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			SSL:      cfg.SMTPSSL,
		}, logger.Named("smtp"))
	default:
		logger.Info("mail dispatch via sendgrid", zap.Bool("sandbox", cfg.SendGridSandbox))
		return sendgrid.New(sendgrid.Options{
			APIKey:  cfg.SendGridAPIKey,
			Sandbox: cfg.SendGridSandbox,
			Timeout: cfg.SendTimeout,
		}, logger.Named("sendgrid"))
	}
}
