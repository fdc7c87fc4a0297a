// Package mail renders reservation emails and sends them over SMTP.
package mail

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/iliyamo/line-event-reservation/internal/model"
)

// Config holds SMTP settings.  Port 465 uses implicit TLS; other ports
// upgrade with STARTTLS when the server offers it.
type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Mailer sends notification emails.  It implements queue.Handler.
type Mailer struct {
	from   string
	logger *zap.Logger
	send   func(msgs ...*gomail.Message) error
}

// New returns a Mailer that dials the SMTP server for each message.
func New(cfg Config, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.SSL = cfg.Port == 465
	return &Mailer{from: cfg.From, logger: logger.Named("mail"), send: d.DialAndSend}
}

// Handle renders and sends the email for n.
func (m *Mailer) Handle(ctx context.Context, n model.Notification) error {
	subject, body, err := Compose(n)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", n.To)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.send(msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", n.Kind, n.To, err)
	}
	m.logger.Debug("email sent", zap.String("kind", string(n.Kind)), zap.String("reservation_id", n.ReservationID))
	return nil
}
