package services

import (
	"context"
	"database/sql"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/dbx"
	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/repomanager"
)

// ConnectionService links and unlinks accounts and identities.
type ConnectionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewConnectionService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *ConnectionService {
	return &ConnectionService{db: db, repomanager: m, logger: l.With("module", "connection_service")}
}

// Link connects accountID and identityID. Both must exist and belong to cu;
// an existing link is a common.ErrorConflict.
func (s *ConnectionService) Link(ctx context.Context, cu models.CurrentUser, accountID, identityID string) (*models.Connection, error) {
	return dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.Connection, error) {
		if err := s.checkEndpoints(ctx, tx, cu, accountID, identityID); err != nil {
			return nil, err
		}
		return s.repomanager.Connections(tx).Create(ctx, accountID, identityID)
	})
}

// Unlink removes the link between accountID and identityID. A missing link
// is common.ErrorNotFound.
func (s *ConnectionService) Unlink(ctx context.Context, cu models.CurrentUser, accountID, identityID string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.checkEndpoints(ctx, tx, cu, accountID, identityID); err != nil {
			return err
		}
		n, err := s.repomanager.Connections(tx).Delete(ctx, accountID, identityID)
		if err != nil {
			return err
		}
		if n == 0 {
			return common.ErrorNotFound
		}
		return nil
	})
}

func (s *ConnectionService) checkEndpoints(ctx context.Context, tx dbx.DBTX, cu models.CurrentUser, accountID, identityID string) error {
	if _, err := ownedAccount(ctx, s.repomanager, tx, cu, accountID); err != nil {
		return err
	}
	_, err := ownedIdentity(ctx, s.repomanager, tx, cu, identityID)
	return err
}
