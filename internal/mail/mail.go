// Package mail dispatches transactional email for the authentication flows.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// Config holds SMTP delivery settings.
type Config struct {
	From     string
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPMailer sends magic-link email over SMTP. It is injected into the auth
// service as a capability so tests can substitute a double.
type SMTPMailer struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer constructs a mailer. Host is required; everything else has
// workable defaults for a local relay.
func NewSMTPMailer(cfg Config) (*SMTPMailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("mail: SMTP host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = "noreply@lexora.io"
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}, nil
}

// SendMagicLink delivers the sign-in link. A delivery failure propagates to
// the caller; the pending token row is simply never delivered.
func (m *SMTPMailer) SendMagicLink(ctx context.Context, to, link string, expiresIn time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	msg := buildMagicLinkMessage(m.cfg.From, to, link, expiresIn)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("mail: send magic link: %w", err)
	}
	return nil
}

func buildMagicLinkMessage(from, to, link string, expiresIn time.Duration) []byte {
	minutes := int(expiresIn.Round(time.Minute) / time.Minute)
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your Magic Link\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString("<p>Click the link below to sign in:</p>\r\n")
	fmt.Fprintf(&b, "<a href=\"%s\">Sign In</a>\r\n", link)
	fmt.Fprintf(&b, "<p>This link will expire in %d minutes.</p>\r\n", minutes)
	return []byte(b.String())
}
