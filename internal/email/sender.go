package email

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"github.com/nckmackenzie/atarah-api/internal/config"
)

// Sender defines the interface for sending emails. The rawMessage must be a
// complete message including headers and body.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// SMTPSender implements Sender using net/smtp.
type SMTPSender struct {
	cfg  *config.Config
	auth smtp.Auth
	addr string
}

// NewSMTPSender creates a new SMTPSender, falling back to a logging sender
// when no SMTP host is configured (local development).
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Println("SMTP host not configured, using logging email sender.")
		return &LoggingSender{cfg: cfg}
	}

	auth := smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	return &SMTPSender{
		cfg:  cfg,
		auth: auth,
		addr: fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
	}
}

// Send sends an email using SMTP.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := smtp.SendMail(s.addr, s.auth, s.cfg.SmtpFromAddress, to, rawMessage); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	log.Printf("Email sent via SMTP to %v (Subject: %s)", to, subject)
	return nil
}

// LoggingSender logs email details instead of sending them.
type LoggingSender struct {
	cfg *config.Config
}

// Send logs the email instead of delivering it.
func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	log.Printf("--- Email (logged, not sent) ---")
	log.Printf("From: %s To: %v Subject: %s", s.cfg.SmtpFromAddress, to, subject)
	log.Println(string(rawMessage))
	log.Printf("--- End email ---")
	return nil
}

// BuildMessage assembles a plain-text email with the minimal headers the
// Sender interface expects in rawMessage.
func BuildMessage(from string, to []string, subject, body string) []byte {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s\r\n",
		from, joinAddresses(to), subject, body)
	return []byte(msg)
}

func joinAddresses(to []string) string {
	out := ""
	for i, addr := range to {
		if i > 0 {
			out += ", "
		}
		out += addr
	}
	return out
}
