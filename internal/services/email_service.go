package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/farmgate/pkg/logger"
)

const otpEmailSubject = "Goat Farm System - Password Reset OTP"

// sesAPI is the part of *ses.Client the mailer calls
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends OTP emails using AWS SES
type SESMailer struct {
	client      sesAPI
	fromAddress string
	otpTTL      time.Duration
	logger      *slog.Logger
}

// NewSESMailer loads the default AWS credential chain for region
func NewSESMailer(ctx context.Context, region, fromAddress string, otpTTL time.Duration, logger *slog.Logger) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		otpTTL:      otpTTL,
		logger:      logger,
	}, nil
}

// SendOTP sends the password reset code to the account's email
func (m *SESMailer) SendOTP(ctx context.Context, to, code string) error {
	textBody, htmlBody := otpEmailBodies(code, m.otpTTL)

	input := &ses.SendEmailInput{
		Source: aws.String(m.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(otpEmailSubject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	m.logger.Info("otp email sent",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("message_id", messageID))

	return nil
}

func otpEmailBodies(code string, ttl time.Duration) (string, string) {
	minutes := int(ttl.Minutes())

	textBody := fmt.Sprintf(`Your OTP code is: %s

This code expires in %d minutes.
If you did not request this, ignore this email.
`, code, minutes)

	htmlBody := fmt.Sprintf(`<p>Your OTP code is: <strong>%s</strong></p><p>This code expires in %d minutes.</p><p>If you did not request this, ignore this email.</p>`,
		code, minutes)

	return textBody, htmlBody
}

// LogMailer writes OTP mail to the log instead of sending it. The code
// itself is only printed in development.
type LogMailer struct {
	logger *slog.Logger
	env    string
}

func NewLogMailer(logger *slog.Logger, env string) *LogMailer {
	return &LogMailer{
		logger: logger,
		env:    env,
	}
}

func (m *LogMailer) SendOTP(ctx context.Context, to, code string) error {
	m.logger.InfoContext(ctx, "otp email (log provider)",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		pkglogger.RedactedAttr("otp", code, m.env))
	return nil
}
