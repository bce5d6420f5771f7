package smtp

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	smtpclient "github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

// Sender delivers reply messages through an outbound SMTP relay.
type Sender struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   *zap.Logger
}

// NewSender creates a new SMTP sender
func NewSender(host string, port int, username, password, from string, logger *zap.Logger) *Sender {
	return &Sender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger,
	}
}

// Configured reports whether enough settings are present to send mail
func (s *Sender) Configured() bool {
	return s.host != "" && s.from != ""
}

// Send delivers a plain-text reply to a single recipient. The recipient may
// be a full header value with a display name; only the bare address goes
// into the SMTP envelope. The context deadline bounds the whole exchange.
func (s *Sender) Send(ctx context.Context, to, subject, body string) error {
	if !s.Configured() {
		return fmt.Errorf("smtp sender is not configured")
	}

	rcpt, err := envelopeAddress(to)
	if err != nil {
		return err
	}

	msg := s.buildMessage(rcpt.String(), subject, body)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	var auth sasl.Client
	if s.username != "" {
		auth = sasl.NewPlainClient("", s.username, s.password)
	}

	done := make(chan error, 1)
	go func() {
		if s.port == 465 {
			done <- smtpclient.SendMailTLS(addr, auth, s.from, []string{rcpt.Address}, bytes.NewReader(msg))
			return
		}
		done <- smtpclient.SendMail(addr, auth, s.from, []string{rcpt.Address}, bytes.NewReader(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send reply via %s: %w", addr, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("Sent reply",
		zap.String("to", rcpt.Address),
		zap.String("subject", subject))
	return nil
}

// envelopeAddress parses a recipient that may carry a display name, e.g.
// "Alice Smith <alice@example.com>". RCPT TO only accepts the bare address.
func envelopeAddress(to string) (*mail.Address, error) {
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address %q: %w", to, err)
	}
	return rcpt, nil
}

func (s *Sender) buildMessage(to, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", s.from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	buf.WriteString("\r\n")
	return buf.Bytes()
}
