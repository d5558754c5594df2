package services

import (
	"context"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/dbx"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ownedAccount loads account id and checks that cu owns it. Malformed ids
// are reported as not found.
func ownedAccount(ctx context.Context, m repomanager.RepositoryManager, db dbx.DBTX, cu models.CurrentUser, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	a, err := m.Accounts(db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cu.Owns(a.UserID) {
		return nil, common.ErrorForbidden
	}
	return a, nil
}

// ownedIdentity is ownedAccount for identities.
func ownedIdentity(ctx context.Context, m repomanager.RepositoryManager, db dbx.DBTX, cu models.CurrentUser, id string) (*models.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	i, err := m.Identities(db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cu.Owns(i.UserID) {
		return nil, common.ErrorForbidden
	}
	return i, nil
}

// snapshot is every row the current user owns, read in one pass.
type snapshot struct {
	identities  []models.Identity
	accounts    []models.Account
	connections []models.Connection
}

func loadSnapshot(ctx context.Context, m repomanager.RepositoryManager, db dbx.DBTX, userID string) (*snapshot, error) {
	ids, err := m.Identities(db).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	accs, err := m.Accounts(db).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	conns, err := m.Connections(db).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &snapshot{identities: ids, accounts: accs, connections: conns}, nil
}
