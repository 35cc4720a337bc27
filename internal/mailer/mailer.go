// Package mailer provides outbound email delivery for OTP codes.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Mailer sends a plain-text message to an email address.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer delivers mail through an authenticated SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
}

// NewSMTP creates an SMTP-backed mailer.
func NewSMTP(host, port, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers one plain-text message. net/smtp dials synchronously, so the
// call runs on a goroutine and the result is gated on ctx to keep the request
// cancellable.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := []byte("From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	done := make(chan error, 1)
	go func() {
		auth := smtp.PlainAuth("", m.username, m.password, m.host)
		done <- smtp.SendMail(m.host+":"+m.port, auth, m.from, []string{to}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail to %s: %w", to, ctx.Err())
	}
}

// LogMailer writes messages to the log instead of delivering them. Used in
// development when no SMTP relay is configured.
type LogMailer struct{}

// NewLog creates a log-only mailer.
func NewLog() *LogMailer {
	return &LogMailer{}
}

// Send logs the message and reports success.
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	slog.Info("SMTP disabled, logging mail instead", "to", to, "subject", subject, "body", body)
	return nil
}
