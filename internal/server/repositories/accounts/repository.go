// Package accounts persists the online services and logins a user secures.
package accounts

import (
	"context"

	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	// FindDuplicate returns another account of userID with the same name and
	// username, ignoring excludeID. It returns common.ErrorNotFound when none exists.
	FindDuplicate(ctx context.Context, userID, name string, username *string, excludeID string) (*models.Account, error)
	ListByUser(ctx context.Context, userID string) ([]models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id string) error
	// DeleteUnlinked removes every account of userID that has no connections
	// and returns the number removed.
	DeleteUnlinked(ctx context.Context, userID string) (int64, error)
}
