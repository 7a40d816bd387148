package mailer

import (
	"context"
	"fmt"
	"log"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridClient is satisfied by *sendgrid.Client.
type SendGridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	client   SendGridClient
	fromName string
	fromAddr string
	replyTo  string
}

func NewSendGridSender(s Settings) *SendGridSender {
	return NewSendGridSenderWithClient(sendgrid.NewSendClient(s.SendGridAPIKey), s.From, s.ReplyTo)
}

func NewSendGridSenderWithClient(client SendGridClient, from, replyTo string) *SendGridSender {
	name, addr := fromAddress(from, from)
	return &SendGridSender{client: client, fromName: name, fromAddr: addr, replyTo: replyTo}
}

func (s *SendGridSender) Send(ctx context.Context, to, subject, htmlBody, plainFallback string) error {
	message := sgmail.NewSingleEmail(
		sgmail.NewEmail(s.fromName, s.fromAddr),
		subject,
		sgmail.NewEmail("", to),
		plainFallback,
		htmlBody,
	)
	if s.replyTo != "" {
		message.SetReplyTo(sgmail.NewEmail("", s.replyTo))
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		log.Printf("❌ [SendGrid] error: %v", err)
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		log.Printf("❌ [SendGrid] returned status %d: %s", response.StatusCode, response.Body)
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}
	log.Printf("✅ [SendGrid] Sent to %s (status %d)", MaskAddress(to), response.StatusCode)
	return nil
}
