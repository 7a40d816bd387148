package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SMTPSender delivers over SMTP with STARTTLS and PLAIN auth.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	replyTo  string
	dialer   *net.Dialer
}

func NewSMTPSender(s Settings) *SMTPSender {
	host, port := s.SMTPHost, s.SMTPPort
	if host == "" {
		host = "smtp.gmail.com"
	}
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: s.SMTPUser,
		password: s.SMTPPass,
		from:     s.From,
		replyTo:  s.ReplyTo,
		dialer:   &net.Dialer{Timeout: 30 * time.Second},
	}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody, plainFallback string) error {
	fromName, fromAddr := fromAddress(s.from, s.username)
	msg := buildMessage(header{
		FromName: fromName,
		FromAddr: fromAddr,
		To:       to,
		ReplyTo:  s.replyTo,
		Subject:  subject,
	}, htmlBody, plainFallback)

	if err := s.deliver(ctx, fromAddr, to, msg); err != nil {
		log.Printf("❌ [SMTP] Failed to send to %s: %v", MaskAddress(to), err)
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Printf("✅ [SMTP] Sent to %s", MaskAddress(to))
	return nil
}

func (s *SMTPSender) deliver(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return fmt.Errorf("%s does not offer STARTTLS", s.host)
	}
	if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
		return fmt.Errorf("STARTTLS: %w", err)
	}
	if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
		return fmt.Errorf("AUTH: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end DATA: %w", err)
	}
	return c.Quit()
}

type header struct {
	FromName string
	FromAddr string
	To       string
	ReplyTo  string
	Subject  string
}

// buildMessage renders a multipart/alternative message. The plain part is
// omitted when plainFallback is empty.
func buildMessage(h header, htmlBody, plainFallback string) []byte {
	from := (&mail.Address{Name: h.FromName, Address: h.FromAddr}).String()
	boundary := "=_" + uuid.New().String()[:16]

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", h.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", h.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.New().String(), domainOf(h.FromAddr))
	if h.ReplyTo != "" {
		fmt.Fprintf(&buf, "Reply-To: %s\r\n", h.ReplyTo)
	}
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	if plainFallback != "" {
		writePart(&buf, boundary, "text/plain", plainFallback)
	}
	writePart(&buf, boundary, "text/html", htmlBody)
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

func writePart(buf *bytes.Buffer, boundary, contentType, body string) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")
	qp := quotedprintable.NewWriter(buf)
	_, _ = qp.Write([]byte(body))
	_ = qp.Close()
	buf.WriteString("\r\n")
}

func domainOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == '@' {
			return addr[i+1:]
		}
	}
	return "localhost"
}
