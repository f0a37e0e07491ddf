// Package repomanager binds the entity repositories to a database handle.
// Services resolve repositories per call site so transactional flows can pass
// a *sql.Tx where they need atomicity across statements.
package repomanager

import (
	"context"
	"database/sql"

	"credgate/internal/dbx"
	"credgate/internal/repositories/audit"
	"credgate/internal/repositories/oidcstates"
	"credgate/internal/repositories/refreshtokens"
	"credgate/internal/repositories/resettokens"
	"credgate/internal/repositories/sessions"
	"credgate/internal/repositories/users"
)

// RepositoryManager resolves one repository per entity over the given DBTX
// (either the shared pool or a transaction).
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	OidcStates(db dbx.DBTX) oidcstates.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
	Audit(db dbx.DBTX) audit.Repository
}
