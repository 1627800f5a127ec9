package fulfillment

import (
	"context"

	gomail "gopkg.in/gomail.v2"

	"github.com/dalgayunus/iTicket/pkg/config"
)

// Mailer delivers ticket notifications.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachments []string) error
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer builds an SMTP mailer from the mail config. When mail is not
// configured it returns a no-op mailer so fulfillment still produces
// documents.
func NewMailer(cfg config.MailConfig) Mailer {
	if !cfg.Enabled() {
		return noopMailer{}
	}
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, htmlBody string, attachments []string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	for _, path := range attachments {
		msg.Attach(path)
	}

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, to, subject, htmlBody string, attachments []string) error {
	return nil
}
