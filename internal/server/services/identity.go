package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/dbx"
	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/graph"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/repomanager"
)

// IdentityService manages recovery factors.
type IdentityService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *IdentityService {
	return &IdentityService{db: db, repomanager: m, logger: l.With("module", "identity_service")}
}

func (s *IdentityService) List(ctx context.Context, cu models.CurrentUser) ([]models.Identity, error) {
	return s.repomanager.Identities(s.db).ListByUser(ctx, cu.ID)
}

// ListWithAccounts returns every identity with the accounts it secures.
func (s *IdentityService) ListWithAccounts(ctx context.Context, cu models.CurrentUser) ([]models.IdentityWithAccounts, error) {
	snap, err := loadSnapshot(ctx, s.repomanager, s.db, cu.ID)
	if err != nil {
		return nil, err
	}
	byIdentity, _ := graph.Resolve(snap.identities, snap.accounts, snap.connections)
	return byIdentity, nil
}

func (s *IdentityService) Get(ctx context.Context, cu models.CurrentUser, id string) (*models.IdentityWithAccounts, error) {
	if _, err := ownedIdentity(ctx, s.repomanager, s.db, cu, id); err != nil {
		return nil, err
	}
	all, err := s.ListWithAccounts(ctx, cu)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, common.ErrorNotFound
}

// Create adds an identity. An existing (type, value) pair yields a
// *DuplicateIdentityError carrying the existing id.
func (s *IdentityService) Create(ctx context.Context, cu models.CurrentUser, in CreateIdentityInput) (*models.Identity, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	t, err := models.ParseIdentityType(in.Type)
	if err != nil {
		return nil, validationError("%v", err)
	}
	value := strings.TrimSpace(in.Value)
	repo := s.repomanager.Identities(s.db)

	if err := rejectDuplicateIdentity(ctx, repo.FindByNaturalKey, cu.ID, t, value, ""); err != nil {
		return nil, err
	}

	created, err := repo.Create(ctx, &models.Identity{UserID: cu.ID, Type: t, Value: value})
	if errors.Is(err, common.ErrorConflict) {
		// lost a race with a concurrent insert
		if existing, lookupErr := repo.FindByNaturalKey(ctx, cu.ID, t, value); lookupErr == nil {
			return nil, &DuplicateIdentityError{ExistingID: existing.ID}
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "identity created", "identity_id", created.ID, "type", created.Type)
	return created, nil
}

// Update changes type and/or value, keeping the natural key unique.
func (s *IdentityService) Update(ctx context.Context, cu models.CurrentUser, id string, in UpdateIdentityInput) (*models.Identity, error) {
	if !in.Type.Set && !in.Value.Set {
		return nil, validationError("at least one of type, value is required")
	}

	return dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.Identity, error) {
		identity, err := ownedIdentity(ctx, s.repomanager, tx, cu, id)
		if err != nil {
			return nil, err
		}

		if in.Type.Set {
			if in.Type.Value == nil {
				return nil, validationError("type must not be null")
			}
			t, err := models.ParseIdentityType(*in.Type.Value)
			if err != nil {
				return nil, validationError("%v", err)
			}
			identity.Type = t
		}
		if in.Value.Set {
			if in.Value.Value == nil || strings.TrimSpace(*in.Value.Value) == "" {
				return nil, validationError("value must be a non-empty string")
			}
			identity.Value = strings.TrimSpace(*in.Value.Value)
		}

		repo := s.repomanager.Identities(tx)
		if err := rejectDuplicateIdentity(ctx, repo.FindByNaturalKey, cu.ID, identity.Type, identity.Value, identity.ID); err != nil {
			return nil, err
		}
		if err := repo.Update(ctx, identity); err != nil {
			return nil, err
		}
		return identity, nil
	})
}

// Delete removes the identity's connections and then the identity itself.
// Accounts left without identities are kept.
func (s *IdentityService) Delete(ctx context.Context, cu models.CurrentUser, id string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := ownedIdentity(ctx, s.repomanager, tx, cu, id); err != nil {
			return err
		}
		if _, err := s.repomanager.Connections(tx).DeleteByIdentity(ctx, id); err != nil {
			return err
		}
		return s.repomanager.Identities(tx).Delete(ctx, id)
	})
}

type naturalKeyLookup func(ctx context.Context, userID string, t models.IdentityType, value string) (*models.Identity, error)

func rejectDuplicateIdentity(ctx context.Context, find naturalKeyLookup, userID string, t models.IdentityType, value, excludeID string) error {
	existing, err := find(ctx, userID, t, value)
	switch {
	case err == nil && existing.ID != excludeID:
		return &DuplicateIdentityError{ExistingID: existing.ID}
	case err == nil, errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return err
	}
}
