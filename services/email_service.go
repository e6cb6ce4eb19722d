package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender delivers a single plain-text message.
type EmailSender interface {
	Send(ctx context.Context, to, toName, subject, body string) error
}

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type SendgridSender struct {
	key  string
	from *sgmail.Email
}

func NewSendgridSender(apiKey, fromName, fromAddr string) *SendgridSender {
	return &SendgridSender{
		key:  apiKey,
		from: sgmail.NewEmail(fromName, fromAddr),
	}
}

func (s *SendgridSender) Send(ctx context.Context, to, toName, subject, body string) error {
	p := sgmail.NewPersonalization()
	p.Subject = subject
	p.AddTos(sgmail.NewEmail(toName, to))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", body))

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email to %s: status %d: %s", to, res.StatusCode, res.Body)
	}
	return nil
}

// ConsoleSender logs messages instead of delivering them. Used when no
// API key is configured.
type ConsoleSender struct {
	logger zerolog.Logger
}

func NewConsoleSender(logger zerolog.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (s *ConsoleSender) Send(ctx context.Context, to, toName, subject, body string) error {
	s.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Msg("email (console sender)")
	return nil
}
