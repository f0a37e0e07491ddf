// Package mail defines the outbound mail collaborator consumed by the auth
// service. The real delivery provider lives outside this subsystem; the
// service only depends on the port.
package mail

import (
	"context"

	"credgate/internal/logging"
)

// Mailer sends auth-related notices to users.
type Mailer interface {
	// SendPasswordResetEmail delivers a reset link carrying token to email.
	SendPasswordResetEmail(ctx context.Context, email, name, token string) error
}

// LogMailer is a stand-in Mailer that records the send instead of delivering
// it. Used in development and as the default when no provider is wired.
type LogMailer struct {
	log logging.Logger
}

// NewLogMailer builds a LogMailer.
func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, email, name, token string) error {
	// The token itself stays out of the logs.
	m.log.Info(ctx, "password reset email", "to", email, "name", name)
	return nil
}
