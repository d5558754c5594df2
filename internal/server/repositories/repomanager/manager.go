package repomanager

import (
	"context"
	"database/sql"

	"github.com/andrii-malakhovtsev/accountmap/internal/dbx"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/accounts"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/connections"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/identities"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code runs
// against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Identities(db dbx.DBTX) identities.Repository
	Accounts(db dbx.DBTX) accounts.Repository
	Connections(db dbx.DBTX) connections.Repository
}
