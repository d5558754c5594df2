// Package identities persists recovery factors (email, phone, authenticator).
package identities

import (
	"context"

	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	GetByID(ctx context.Context, id string) (*models.Identity, error)
	FindByNaturalKey(ctx context.Context, userID string, t models.IdentityType, value string) (*models.Identity, error)
	ListByUser(ctx context.Context, userID string) ([]models.Identity, error)
	Update(ctx context.Context, identity *models.Identity) error
	Delete(ctx context.Context, id string) error
}
