// Package connections persists the many-to-many links between accounts and
// identities.
package connections

import (
	"context"

	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
)

type Repository interface {
	// Create links accountID and identityID. An existing link yields
	// common.ErrorConflict.
	Create(ctx context.Context, accountID, identityID string) (*models.Connection, error)
	// Delete removes one link and reports how many rows were removed.
	Delete(ctx context.Context, accountID, identityID string) (int64, error)
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
	DeleteByIdentity(ctx context.Context, identityID string) (int64, error)
	// ListByUser returns every link whose account belongs to userID.
	ListByUser(ctx context.Context, userID string) ([]models.Connection, error)
}
