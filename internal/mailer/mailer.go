// Package mailer holds the email transports the reminder service sends through.
package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	appErrors "github.com/unclebandit/anniversary-reminder/internal/errors"
)

// Sender delivers one email to one address. A returned error is a failure for
// that recipient only.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, plainFallback string) error
}

// Settings selects and configures a transport.
type Settings struct {
	Provider string // smtp, ses, sendgrid, console

	From    string // "Name <addr>" or bare address
	ReplyTo string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	SESRegion    string
	SESAccessKey string
	SESSecretKey string

	SendGridAPIKey string
}

// New builds the Sender named by s.Provider.
func New(s Settings) (Sender, error) {
	switch strings.ToLower(s.Provider) {
	case "", "smtp":
		if s.SMTPUser == "" || s.SMTPPass == "" {
			return nil, fmt.Errorf("smtp: SMTP_USER and SMTP_PASS are required: %w", appErrors.ErrNotConfigured)
		}
		return NewSMTPSender(s), nil
	case "ses":
		sender, err := NewSESSender(s)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case "sendgrid":
		if s.SendGridAPIKey == "" {
			return nil, fmt.Errorf("sendgrid: SENDGRID_API_KEY is required: %w", appErrors.ErrNotConfigured)
		}
		return NewSendGridSender(s), nil
	case "console":
		return NewConsoleSender(nil), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", s.Provider)
}

// fromAddress splits "Display Name <addr>" into its parts. A bare address, or
// an empty value, falls back to fallback.
func fromAddress(from, fallback string) (name, addr string) {
	if from == "" {
		return "", fallback
	}
	parsed, err := mail.ParseAddress(from)
	if err != nil {
		return "", from
	}
	return parsed.Name, parsed.Address
}

// MaskAddress keeps log lines free of full addresses: "maria@example.com"
// becomes "m***@example.com".
func MaskAddress(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at < 0 {
		return "***"
	}
	if at <= 1 {
		return "***" + addr[at:]
	}
	return addr[:1] + "***" + addr[at:]
}
