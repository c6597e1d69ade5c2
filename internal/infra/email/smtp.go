package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"pnr_tracker/internal/domain/transport"
)

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport sends plain-text email through an SMTP relay.
type SMTPTransport struct {
	dialer Dialer
	from   string
}

func NewSMTPTransport(host string, port int, username, password, from string) *SMTPTransport {
	return NewSMTPTransportWithDialer(gomail.NewDialer(host, port, username, password), from)
}

func NewSMTPTransportWithDialer(dialer Dialer, from string) *SMTPTransport {
	return &SMTPTransport{dialer: dialer, from: from}
}

// Send dials, sends and hangs up. gomail has no context support, so a cancelled ctx only
// stops the wait; the SMTP exchange itself is bounded by the dialer's timeouts.
func (t *SMTPTransport) Send(ctx context.Context, msg transport.Message) error {
	if msg.Recipient == "" {
		return fmt.Errorf("email recipient is empty")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	done := make(chan error, 1)
	go func() {
		done <- t.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", msg.Recipient, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sending email to %s: %w", msg.Recipient, ctx.Err())
	}
}
