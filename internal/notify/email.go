package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender sends one email. SendGrid in production, StubEmailSender otherwise.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // plain text
	HTML    string // optional
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// Host overrides https://api.sendgrid.com, for tests and proxies.
	Host string
}

type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    zerolog.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger zerolog.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.FromName == "" {
		cfg.FromName = "Appointments"
	}

	client := sendgrid.NewSendClient(cfg.APIKey)
	if cfg.Host != "" {
		req := sendgrid.GetRequest(cfg.APIKey, "/v3/mail/send", cfg.Host)
		req.Method = "POST"
		client = &sendgrid.Client{Request: req}
	}

	return &SendGridSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger.With().Str("component", "sendgrid").Logger(),
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)

	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, html)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error().Err(err).Str("to", msg.To).Msg("sendgrid send failed")
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error().Int("status", response.StatusCode).Str("body", response.Body).Str("to", msg.To).Msg("sendgrid returned error status")
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Int("status", response.StatusCode).Msg("email sent via sendgrid")
	return nil
}

// StubEmailSender logs instead of sending. Used when SENDGRID_API_KEY is unset.
type StubEmailSender struct {
	logger zerolog.Logger
}

func NewStubEmailSender(logger zerolog.Logger) *StubEmailSender {
	return &StubEmailSender{logger: logger.With().Str("component", "stub-email").Logger()}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("stub email sender: would send email")
	return nil
}
