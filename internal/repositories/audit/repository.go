// Package audit provides the append-only repository for the auth audit
// trail.
package audit

import (
	"context"

	"credgate/internal/models"
)

// Repository records auth events. A failed write surfaces as a wrapped data
// error; the orchestration layer decides whether to log-and-continue.
type Repository interface {
	Record(ctx context.Context, event *models.AuthAuditEvent) error
}
