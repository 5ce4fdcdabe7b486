package email

import (
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/emersion/go-message/mail"

	"github.com/ladle-app/ladle/internal/config"
)

// Sender delivers composed messages over SMTP with STARTTLS.
type Sender struct {
	cfg    config.EmailConfig
	logger *slog.Logger
}

// NewSender creates a sender from the email configuration.
func NewSender(cfg config.EmailConfig, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{cfg: cfg, logger: logger.With("component", "email")}
}

// Enabled reports whether email delivery is configured.
func (s *Sender) Enabled() bool {
	return s.cfg.Enabled && s.cfg.SMTPHost != ""
}

// Send delivers a composed message to the given recipients.
func (s *Sender) Send(to []string, msg []byte) error {
	if !s.Enabled() {
		return fmt.Errorf("email delivery is not configured")
	}

	from, err := mail.ParseAddress(s.cfg.From)
	if err != nil {
		return fmt.Errorf("parse from address %q: %w", s.cfg.From, err)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, from.Address, to, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	s.logger.Info("email sent", "to", to, "bytes", len(msg))
	return nil
}
