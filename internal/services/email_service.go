package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/kafedra/pkg/logger"
)

// EmailService defines the interface for sending emails
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

// SESClient is the part of the SES API used here
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   SESClient
	fromAddress string
	resetURL    string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, resetURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, resetURL, logger), nil
}

// NewSESEmailServiceWithClient wires an existing SES client
func NewSESEmailServiceWithClient(client SESClient, fromAddress, resetURL string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		resetURL:    resetURL,
		logger:      logger,
	}
}

func resetLink(base, token string) string {
	return base + "?token=" + url.QueryEscape(token)
}

// SendPasswordResetEmail mails the reset link
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := resetLink(s.resetURL, token)
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h1>Reset your password</h1>
  <p>A password reset was requested for your Kafedra account.</p>
  <p><a href="%s">Choose a new password</a></p>
  <p>Or copy this link into your browser:<br><code>%s</code></p>
  <p>The link expires in %d minutes and can be used once.</p>
  <p>If you did not ask for this, ignore this email. Your password stays unchanged.</p>
</body>
</html>
`, link, link, minutes)

	textBody := fmt.Sprintf(`Reset your password

A password reset was requested for your Kafedra account.

%s

The link expires in %d minutes and can be used once.
If you did not ask for this, ignore this email. Your password stays unchanged.
`, link, minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String("Reset your Kafedra password"),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send password reset email via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("password reset email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

// LogEmailService stands in for SES when email delivery is disabled. Outside
// production the reset link is written to the log so the flow can be finished
// locally.
type LogEmailService struct {
	resetURL string
	env      string
	logger   *slog.Logger
}

func NewLogEmailService(resetURL, env string, logger *slog.Logger) *LogEmailService {
	return &LogEmailService{resetURL: resetURL, env: env, logger: logger}
}

func (s *LogEmailService) SendPasswordResetEmail(_ context.Context, email, token string, expiresAt time.Time) error {
	s.logger.Warn("email delivery disabled, password reset link not sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		pkglogger.RedactedAttr("reset_link", resetLink(s.resetURL, token), s.env),
		slog.Time("expires_at", expiresAt))
	return nil
}
