package config

import (
	"fmt"
	"strings"
	"time"
)

type MailProvider string

const (
	MailProviderSendGrid MailProvider = "sendgrid"
	MailProviderSMTP     MailProvider = "smtp"
	MailProviderDisabled MailProvider = "disabled"
)

// MailConfig selects and configures the single provider account used for all sends.
type MailConfig struct {
	Provider MailProvider

	FromAddress string
	FromName    string

	SendGridAPIKey  string
	SendGridSandbox bool

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSSL      bool

	// SendTimeout bounds one delivery attempt at the transport level.
	SendTimeout time.Duration
}

// HasCredentials reports whether the selected provider has what it needs to send.
// A provider without credentials is replaced by the disabled dispatcher at start-up.
func (c MailConfig) HasCredentials() bool {
	switch c.Provider {
	case MailProviderSendGrid:
		return c.SendGridAPIKey != ""
	case MailProviderSMTP:
		return c.SMTPHost != ""
	default:
		return false
	}
}

func LoadMailConfigFromEnv() (MailConfig, error) {
	cfg := MailConfig{
		Provider:       MailProvider(strings.ToLower(Getenv("MAIL_PROVIDER", string(MailProviderSendGrid)))),
		FromAddress:    Getenv("MAIL_FROM", "no-reply@trip-sharing.local"),
		FromName:       Getenv("MAIL_FROM_NAME", "Trip Sharing"),
		SendGridAPIKey: Getenv("SENDGRID_API_KEY", ""),
		SMTPHost:       Getenv("SMTP_HOST", "localhost"),
		SMTPUser:       Getenv("SMTP_USER", ""),
		SMTPPassword:   Getenv("SMTP_PASSWORD", ""),
	}

	switch cfg.Provider {
	case MailProviderSendGrid, MailProviderSMTP, MailProviderDisabled:
	default:
		return MailConfig{}, fmt.Errorf("MAIL_PROVIDER must be one of sendgrid, smtp, disabled (got %q)", cfg.Provider)
	}

	var err error
	if cfg.SendGridSandbox, err = getenvBool("SENDGRID_SANDBOX", false); err != nil {
		return MailConfig{}, err
	}
	if cfg.SMTPPort, err = getenvInt("SMTP_PORT", 587); err != nil {
		return MailConfig{}, err
	}
	if cfg.SMTPSSL, err = getenvBool("SMTP_SSL", cfg.SMTPPort == 465); err != nil {
		return MailConfig{}, err
	}
	if cfg.SendTimeout, err = getenvDuration("MAIL_SEND_TIMEOUT", 10*time.Second); err != nil {
		return MailConfig{}, err
	}
	return cfg, nil
}
