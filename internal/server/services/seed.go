package services

import (
	"context"
	"database/sql"
	"math/rand/v2"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/dbx"
	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/repomanager"
)

const seedAccountCount = 8

var (
	seedServices = []string{"GOOGLE", "GITHUB", "NETFLIX", "SPOTIFY", "AMAZON", "DISCORD", "PAYPAL", "CHASE", "DROPBOX", "NOTION"}
	seedNotes    = []string{"2FA enabled", "Shared account", "Primary login", "Work account", "Old credentials", "Personal use"}
)

// SeedService fills an empty user with demo data.
type SeedService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	rnd         *rand.Rand
}

// NewSeedService builds the service. A nil rnd uses a randomly seeded source.
func NewSeedService(db *sql.DB, m repomanager.RepositoryManager, rnd *rand.Rand, l logging.Logger) *SeedService {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SeedService{db: db, repomanager: m, rnd: rnd, logger: l.With("module", "seed_service")}
}

// Seed creates three identities and eight accounts linked to random subsets
// of them. It does nothing and returns false when the user already has
// identities.
func (s *SeedService) Seed(ctx context.Context, u *models.User) (bool, error) {
	seeded, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (bool, error) {
		identities := s.repomanager.Identities(tx)

		existing, err := identities.ListByUser(ctx, u.ID)
		if err != nil {
			return false, err
		}
		if len(existing) > 0 {
			return false, nil
		}

		created := make([]*models.Identity, 0, 3)
		for _, in := range []models.Identity{
			{Type: models.IdentityMail, Value: u.Email},
			{Type: models.IdentityPhone, Value: "+15551234567"},
			{Type: models.IdentityAuth, Value: "auth-token-" + u.Username},
		} {
			in.UserID = u.ID
			i, err := identities.Create(ctx, &in)
			if err != nil {
				return false, err
			}
			created = append(created, i)
		}

		accounts := s.repomanager.Accounts(tx)
		conns := s.repomanager.Connections(tx)

		names := append([]string(nil), seedServices...)
		s.rnd.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })

		for _, name := range names[:seedAccountCount] {
			a, err := accounts.Create(ctx, &models.Account{
				Name:       name,
				Username:   common.Ptr(u.Email),
				Notes:      common.Ptr(seedNotes[s.rnd.IntN(len(seedNotes))]),
				Categories: []string{},
				UserID:     u.ID,
			})
			if err != nil {
				return false, err
			}

			for _, i := range created {
				if s.rnd.IntN(2) == 0 {
					continue
				}
				if _, err := conns.Create(ctx, a.ID, i.ID); err != nil {
					return false, err
				}
			}
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		s.logger.Info(ctx, "demo data seeded", "user_id", u.ID)
	}
	return seeded, nil
}
