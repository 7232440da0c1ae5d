package notify

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"compras/internal/config"
)

// Sender delivers one plain-text email.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends through an SMTP relay.
type SMTPSender struct {
	cfg    config.EmailConfig
	dialer *gomail.Dialer
}

// NewSMTPSender creates a sender for the given SMTP settings.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send dials the relay and sends a single message.
func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.From, "Sistema de Compras"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. Used when
// email delivery is disabled.
type LogSender struct {
	log *zap.SugaredLogger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(log *zap.SugaredLogger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the message and reports success.
func (s *LogSender) Send(to, subject, body string) error {
	s.log.Infow("email delivery disabled, message logged", "to", to, "subject", subject, "bytes", len(body))
	return nil
}

// NewSender picks the SMTP sender when email is enabled and the log sender otherwise.
func NewSender(cfg config.EmailConfig, log *zap.SugaredLogger) Sender {
	if cfg.Enabled {
		return NewSMTPSender(cfg)
	}
	return NewLogSender(log)
}
