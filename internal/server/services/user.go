// Package services holds the business operations of the server. Every
// operation takes the caller as an explicit models.CurrentUser and every
// multi-step mutation runs in one dbx transaction.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/dbx"
	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/auth"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/config"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/repomanager"
)

// UserService owns the default user and the bearer tokens that identify
// users on the API.
type UserService struct {
	db                    *sql.DB
	repomanager           repomanager.RepositoryManager
	logger                logging.Logger
	jwtSecret             []byte
	tokenValidityDuration time.Duration
	defaultUsername       string
	defaultEmail          string

	defaultUser *models.User
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, l logging.Logger) *UserService {
	return &UserService{
		db:                    db,
		repomanager:           m,
		logger:                l.With("module", "user_service"),
		jwtSecret:             []byte(cfg.SecretKey),
		tokenValidityDuration: cfg.TokenValidityDuration,
		defaultUsername:       cfg.DefaultUsername,
		defaultEmail:          cfg.DefaultEmail,
	}
}

// EnsureDefaultUser returns the default user, creating it when absent.
// It is called once at boot, before the HTTP server starts.
func (s *UserService) EnsureDefaultUser(ctx context.Context) (*models.User, error) {
	u, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		repo := s.repomanager.Users(tx)
		u, err := repo.GetByUsername(ctx, s.defaultUsername)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return repo.Create(ctx, &models.User{Username: s.defaultUsername, Email: s.defaultEmail})
	})
	if errors.Is(err, common.ErrorConflict) {
		// another instance created it first
		u, err = s.repomanager.Users(s.db).GetByUsername(ctx, s.defaultUsername)
	}
	if err != nil {
		return nil, err
	}

	s.defaultUser = u
	s.logger.Info(ctx, "default user ready", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Default returns the default user as a CurrentUser. EnsureDefaultUser must
// have succeeded before.
func (s *UserService) Default() (models.CurrentUser, error) {
	if s.defaultUser == nil {
		return models.CurrentUser{}, common.ErrorInternal
	}
	return models.CurrentUser{ID: s.defaultUser.ID, Username: s.defaultUser.Username}, nil
}

func (s *UserService) Get(ctx context.Context, cu models.CurrentUser) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, cu.ID)
}

// IssueToken signs a bearer token for cu.
func (s *UserService) IssueToken(ctx context.Context, cu models.CurrentUser) (string, error) {
	if _, err := s.Get(ctx, cu); err != nil {
		return "", err
	}
	return auth.GenerateToken(cu.ID, s.jwtSecret, s.tokenValidityDuration)
}

// Resolve maps a bearer token to its user. An empty token resolves to the
// default user; a bad token, or one naming an unknown user, fails with
// common.ErrorUnauthorized wrapped around the cause.
func (s *UserService) Resolve(ctx context.Context, token string) (models.CurrentUser, error) {
	if token == "" {
		return s.Default()
	}

	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return models.CurrentUser{}, errors.Join(common.ErrorUnauthorized, err)
	}

	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return models.CurrentUser{}, errors.Join(common.ErrorUnauthorized, common.ErrInvalidToken)
	}
	if err != nil {
		return models.CurrentUser{}, err
	}
	return models.CurrentUser{ID: u.ID, Username: u.Username}, nil
}
