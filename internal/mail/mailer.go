// Package mail delivers OTP verification emails.
package mail

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/metflix/server/internal/logger"
	"github.com/rs/zerolog/log"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const subject = "Welcome to Metflix - Verify Your Email"

// Mailer sends a verification code to a recipient
type Mailer interface {
	SendVerificationCode(ctx context.Context, name, email, code string) error
}

var htmlBody = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; padding: 20px; text-align: center;">
  <h2 style="color: #4CAF50;">Welcome to Metflix, {{.Name}}!</h2>
  <p>Please use the verification code below to complete your email verification:</p>
  <div style="margin: 20px 0; font-size: 1.5em; font-weight: bold; color: #4CAF50;">{{.Code}}</div>
  <p>If you didn't request this, please ignore this email.</p>
  <p><strong>The Metflix Team</strong></p>
</div>`))

func render(name, code string) (plain, html string, err error) {
	plain = fmt.Sprintf("Hello %s,\n\nYour verification code is: %s\n\nThanks,\nThe Metflix Team", name, code)
	var b strings.Builder
	if err := htmlBody.Execute(&b, struct{ Name, Code string }{name, code}); err != nil {
		return "", "", fmt.Errorf("render email: %w", err)
	}
	return plain, b.String(), nil
}

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGridMailer sends email through the SendGrid v3 HTTP API. Each send
// builds its own request, so one mailer is safe for concurrent use.
type SendGridMailer struct {
	apiKey string
	host   string
	sender string
	client *rest.Client
}

// NewSendGridMailer creates a mailer using apiKey and the from address sender
func NewSendGridMailer(apiKey, sender string) *SendGridMailer {
	return &SendGridMailer{
		apiKey: apiKey,
		host:   sendGridHost,
		sender: sender,
		client: &rest.Client{HTTPClient: &http.Client{Timeout: 10 * time.Second}},
	}
}

// SendVerificationCode implements Mailer
func (m *SendGridMailer) SendVerificationCode(ctx context.Context, name, email, code string) error {
	plain, html, err := render(name, code)
	if err != nil {
		return err
	}
	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail("Metflix", m.sender),
		subject,
		sgmail.NewEmail(name, email),
		plain,
		html,
	)

	req := sendgrid.GetRequest(m.apiKey, sendGridEndpoint, m.host)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(msg)

	resp, err := m.client.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return err
	}
	log.Ctx(ctx).Debug().Str("email", logger.MaskEmail(email)).Int("status", resp.StatusCode).Msg("verification email sent")
	return nil
}

func checkResponse(resp *rest.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer writes codes to the log instead of sending them. Development only.
type LogMailer struct{}

// SendVerificationCode implements Mailer
func (LogMailer) SendVerificationCode(ctx context.Context, name, email, code string) error {
	log.Ctx(ctx).Info().Str("name", name).Str("email", email).Str("code", code).Msg("verification code (not emailed)")
	return nil
}
