// Package email sends notification mail over SMTP. Delivery is best-effort;
// the notification module logs and drops failures.
package email

import (
	"context"
	"fmt"

	"propcare_backend/platform/config"
	"propcare_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// Sender delivers plain-text notification emails.
type Sender struct {
	cfg config.EmailConfig
	log *logger.Logger
}

// NewSender creates an SMTP sender.
func NewSender(cfg config.EmailConfig, log *logger.Logger) *Sender {
	return &Sender{cfg: cfg, log: log}
}

// Enabled reports whether outgoing mail is configured.
func (s *Sender) Enabled() bool {
	return s.cfg.GetEmailEnabled() && s.cfg.GetSMTPHost() != ""
}

// Send delivers one message. Disabled senders drop mail silently so callers
// do not need their own enablement checks.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if !s.Enabled() {
		s.log.Debug("email disabled, dropping message", "to", to, "subject", subject)
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.cfg.GetEmailFromName(), s.cfg.GetEmailFromAddress()); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %s: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(s.cfg.GetSMTPHost(),
		gomail.WithPort(s.cfg.GetSMTPPort()),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.GetSMTPUsername()),
		gomail.WithPassword(s.cfg.GetSMTPPassword()),
	)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
