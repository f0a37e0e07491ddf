package models

import "time"

// AuditEvent names recorded in the auth audit trail.
const (
	AuditSignup                 = "signup"
	AuditLoginSuccess           = "login_success"
	AuditLoginFailure           = "login_failure"
	AuditPasswordResetRequested = "password_reset_requested"
	AuditPasswordChanged        = "password_changed"
	AuditOAuthLinked            = "oauth_linked"
	AuditOAuthUnlinked          = "oauth_unlinked"
	AuditSessionRefreshed       = "session_refreshed"
	AuditSessionRevoked         = "session_revoked"
	AuditUserDeleted            = "user_deleted"
)

// Audit event statuses.
const (
	AuditStatusOK     = "ok"
	AuditStatusFailed = "failed"
)

// AuthAuditEvent is an append-only auth trail row. UserID is empty when the
// event could not be attributed (e.g. failed login for an unknown email).
type AuthAuditEvent struct {
	ID         string
	UserID     string
	Event      string
	Status     string
	Identifier string
	IP         string
	Metadata   map[string]string
	CreatedAt  time.Time
}
