package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends a plain-text email. The dispatcher treats a nil Mailer as
// "mail disabled".
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends through a plain SMTP relay with optional auth.
type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// NewSMTPMailer returns nil when no host is configured, which disables
// email entirely.
func NewSMTPMailer(host, port, username, password, from string) Mailer {
	if host == "" {
		return nil
	}
	return &SMTPMailer{Host: host, Port: port, Username: username, Password: password, From: from}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%s", m.Host, m.Port)
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}
