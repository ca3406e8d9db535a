package mailer

import (
	"context"

	"go.uber.org/zap"
)

// Mailer delivers verification and password-reset codes to users.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordResetCode(ctx context.Context, email, code string) error
}

// LogMailer writes outgoing mail to the structured log instead of an
// SMTP relay. Deployments without a mail provider run with this.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationCode(_ context.Context, email, code string) error {
	m.logger.Info("verification code issued",
		zap.String("email", email),
		zap.String("code", code),
	)
	return nil
}

func (m *LogMailer) SendPasswordResetCode(_ context.Context, email, code string) error {
	m.logger.Info("password reset code issued",
		zap.String("email", email),
		zap.String("code", code),
	)
	return nil
}
