package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"tutorx/internal/config"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers transactional mail.
type Mailer interface {
	SendPasswordReset(ctx context.Context, toName, toEmail, resetURL string) error
}

// MailService sends through SendGrid. Without an API key it logs the message instead.
type MailService struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger *slog.Logger
}

func NewMailService(cfg *config.Config, logger *slog.Logger) *MailService {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &MailService{logger: logger}
	if cfg == nil {
		return svc
	}
	svc.from = sgmail.NewEmail(cfg.MailFromName, cfg.MailFromAddress)
	if cfg.SendgridAPIKey != "" {
		svc.client = sendgrid.NewSendClient(cfg.SendgridAPIKey)
	}
	return svc
}

func (s *MailService) SendPasswordReset(ctx context.Context, toName, toEmail, resetURL string) error {
	subject := "Reset your tutorX password"
	text := fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires in one hour.\n\n%s\n\nIf you did not ask for this, ignore this email.\n", toName, resetURL)
	html := fmt.Sprintf(`<p>Hi %s,</p><p>Use the link below to choose a new password. It expires in one hour.</p><p><a href="%s">Reset password</a></p><p>If you did not ask for this, ignore this email.</p>`, toName, resetURL)

	if s.client == nil {
		s.logger.InfoContext(ctx, "password reset mail (sendgrid disabled)", slog.String("to", toEmail), slog.String("reset_url", resetURL))
		return nil
	}

	msg := sgmail.NewSingleEmail(s.from, subject, sgmail.NewEmail(toName, toEmail), text, html)
	res, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send reset mail: sendgrid status %d", res.StatusCode)
	}
	return nil
}
