// Package users persists the owners of accounts and identities.
package users

import (
	"context"

	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
