package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"zephyrm-backend/internal/config"
	"zephyrm-backend/internal/logger"
)

// NewMailer picks the provider configured under smtp.provider.
func NewMailer(cfg config.SMTPConfig) (Mailer, error) {
	switch cfg.Provider {
	case "", "none":
		return noopMailer{}, nil
	case "smtp":
		return NewSMTPMailer(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.From), nil
	case "sendgrid":
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.From, "Zephyrm"), nil
	}
	return nil, fmt.Errorf("unsupported mail provider %q", cfg.Provider)
}

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, to, subject, body string) error {
	logger.Debug("Mail disabled, dropping message", "to", to, "subject", subject)
	return nil
}

type smtpMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPMailer(host string, port int, username, password, from string) Mailer {
	return &smtpMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *smtpMailer) Send(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body+"\n\nBest regards,\nThe Zephyrm Team")

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)

	logger.ExternalServiceCall("smtp", "send", "to", to)
	err := d.DialAndSend(m)
	logger.ExternalServiceResult("smtp", "send", err)
	if err != nil {
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	return nil
}

type sendGridMailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) Mailer {
	return &sendGridMailer{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *sendGridMailer) Send(ctx context.Context, to, subject, body string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), body, "")

	logger.ExternalServiceCall("sendgrid", "send", "to", to)
	response, err := s.client.SendWithContext(ctx, message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "send", err)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
