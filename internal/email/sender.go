// Package email delivers HTML email through a configured provider.
package email

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"outreach_backend/platform/config"
)

// Message is one outbound email. Cc may be empty.
type Message struct {
	To      string
	Cc      []string
	Subject string
	HTML    string
}

// Sender is implemented by every email provider.
type Sender interface {
	SendEmail(ctx context.Context, msg Message) error
}

// NoopSender drops messages. Used when email is disabled.
type NoopSender struct{}

func (NoopSender) SendEmail(context.Context, Message) error { return nil }

// NewSender picks the provider named by EMAIL_PROVIDER.
func NewSender(cfg config.EmailConfig, smtpCfg config.SMTPConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	switch strings.ToLower(cfg.GetEmailProvider()) {
	case "smtp":
		return NewSMTPSender(
			smtpCfg.GetSMTPHost(),
			smtpCfg.GetSMTPPort(),
			smtpCfg.GetSMTPUsername(),
			smtpCfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		), nil
	case "brevo":
		return &BrevoSender{
			apiKey:    cfg.GetBrevoAPIKey(),
			fromName:  cfg.GetEmailFromName(),
			fromEmail: cfg.GetEmailFromAddress(),
			endpoint:  brevoEndpoint,
			client:    &http.Client{Timeout: 10 * time.Second},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported email provider %q", cfg.GetEmailProvider())
	}
}
