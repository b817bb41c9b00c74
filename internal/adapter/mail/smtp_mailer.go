// Package mail delivers admin emails over SMTP.
package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled reports whether enough is configured to send.
func (c Config) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// SMTPMailer implements port.Mailer. Each Send dials a fresh connection,
// mail volume is a handful of admin alerts.
type SMTPMailer struct {
	from   string
	dialer *gomail.Dialer
	send   func(m *gomail.Message) error
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	m := &SMTPMailer{from: cfg.From, dialer: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)}
	m.send = func(msg *gomail.Message) error { return m.dialer.DialAndSend(msg) }
	return m
}

// WithSender routes messages through s instead of dialing SMTP.
func (m *SMTPMailer) WithSender(s gomail.Sender) *SMTPMailer {
	m.send = func(msg *gomail.Message) error { return gomail.Send(s, msg) }
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.send(msg); err != nil {
		return fmt.Errorf("send mail %q: %w", subject, err)
	}
	return nil
}
