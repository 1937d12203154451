package notify

import (
	"crypto/tls"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/oversite/domainwatch/internal/config"
)

// Dispatcher ships one rendered alert. Implementations make exactly one
// delivery attempt; the caller logs failures and never requeues.
type Dispatcher interface {
	Dispatch(subject, html, plain string) error
}

// Mailer sends multipart (plain + HTML) mail over authenticated SMTP with
// STARTTLS. Each dispatch opens its own session and closes it regardless of
// outcome.
type Mailer struct {
	dialer     *gomail.Dialer
	from       string
	recipients []string
}

func NewMailer(cfg config.Email) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &Mailer{dialer: d, from: from, recipients: cfg.Recipients}
}

func (m *Mailer) Dispatch(subject, html, plain string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plain)
	msg.AddAlternative("text/html", html)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}
