package mailer

import (
	"context"
	"io"
	"log"
	"os"
)

// ConsoleSender prints messages instead of sending them. Useful in
// development and for dry runs.
type ConsoleSender struct {
	logger *log.Logger
}

// NewConsoleSender writes to w, or stdout when w is nil.
func NewConsoleSender(w io.Writer) *ConsoleSender {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSender{logger: log.New(w, "", log.LstdFlags)}
}

func (s *ConsoleSender) Send(ctx context.Context, to, subject, htmlBody, plainFallback string) error {
	s.logger.Printf("📧 [EMAIL] %s", subject)
	s.logger.Printf("   To: %s", to)
	if plainFallback != "" {
		s.logger.Printf("   %s", plainFallback)
	} else {
		s.logger.Printf("   %s", htmlBody)
	}
	s.logger.Printf("   ⚠️  Email NOT sent (console mode)")
	return nil
}
