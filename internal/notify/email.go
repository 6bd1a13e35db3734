package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const defaultSMTPTimeout = 10 * time.Second

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	From     string
	Timeout  time.Duration
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailDispatcher mails actors that registered an address.
type EmailDispatcher struct {
	contacts ContactLookup
	sender   mailSender
	from     string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewEmailDispatcher(cfg EmailConfig, contacts ContactLookup, logger *zap.Logger) *EmailDispatcher {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.UseTLS
	if cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	}
	return newEmailDispatcher(d, cfg.From, cfg.Timeout, contacts, logger)
}

func newEmailDispatcher(sender mailSender, from string, timeout time.Duration, contacts ContactLookup, logger *zap.Logger) *EmailDispatcher {
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	return &EmailDispatcher{
		contacts: contacts,
		sender:   sender,
		from:     strings.TrimSpace(from),
		timeout:  timeout,
		logger:   logger,
	}
}

func (d *EmailDispatcher) Send(ctx context.Context, recipient, subject, body string) error {
	contact, err := d.contacts.GetByActorID(ctx, recipient)
	if err != nil {
		return fmt.Errorf("lookup contact: %w", err)
	}
	if contact == nil || strings.TrimSpace(contact.Email) == "" {
		d.logger.Debug("No email address, skipping", zap.String("recipient", recipient))
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", d.from)
	msg.SetHeader("To", strings.TrimSpace(contact.Email))
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- d.sender.DialAndSend(msg)
	}()

	wait := d.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left > 0 && left < wait {
			wait = left
		}
	}

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email to %s: %w", recipient, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return fmt.Errorf("send email to %s: %w", recipient, context.DeadlineExceeded)
	}
}
