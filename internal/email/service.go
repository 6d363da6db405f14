package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type Service interface {
	// Enabled reports whether a transport is configured. A disabled
	// service is not an error state; the email channel simply opts
	// out of dispatch.
	Enabled() bool
	Send(ctx context.Context, to, subject, html string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type service struct {
	cfg    Config
	dialer *gomail.Dialer
}

// NewService builds an SMTP-backed email service. With no host
// configured the service is disabled rather than erroring.
func NewService(cfg Config) Service {
	s := &service{cfg: cfg}
	if cfg.Host != "" {
		s.dialer = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return s
}

func (s *service) Enabled() bool {
	return s.dialer != nil
}

func (s *service) Send(ctx context.Context, to, subject, html string) error {
	if s.dialer == nil {
		return fmt.Errorf("email transport not configured")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	// gomail has no context support; honor cancellation ourselves.
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
