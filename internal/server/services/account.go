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
	"github.com/andrii-malakhovtsev/accountmap/internal/server/importer"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/repomanager"
)

// AccountService manages accounts and the connections created with them.
// Every multi-step mutation runs in one transaction.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *AccountService {
	return &AccountService{db: db, repomanager: m, logger: l.With("module", "account_service")}
}

// List returns the user's accounts ordered by name.
func (s *AccountService) List(ctx context.Context, cu models.CurrentUser) ([]models.Account, error) {
	return s.repomanager.Accounts(s.db).ListByUser(ctx, cu.ID)
}

// ListWithIdentities returns every account with the identities that secure it.
func (s *AccountService) ListWithIdentities(ctx context.Context, cu models.CurrentUser) ([]models.AccountWithIdentities, error) {
	snap, err := loadSnapshot(ctx, s.repomanager, s.db, cu.ID)
	if err != nil {
		return nil, err
	}
	_, byAccount := graph.Resolve(snap.identities, snap.accounts, snap.connections)
	return byAccount, nil
}

// Get returns one owned account with its identities.
func (s *AccountService) Get(ctx context.Context, cu models.CurrentUser, id string) (*models.AccountWithIdentities, error) {
	if _, err := ownedAccount(ctx, s.repomanager, s.db, cu, id); err != nil {
		return nil, err
	}
	all, err := s.ListWithIdentities(ctx, cu)
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

// Create validates in, rejects a duplicate (name, username), resolves or
// creates every referenced identity, then inserts the account and its
// connections, all in one transaction.
func (s *AccountService) Create(ctx context.Context, cu models.CurrentUser, in CreateAccountInput) (*models.AccountWithIdentities, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	account := &models.Account{
		Name:       strings.TrimSpace(in.Name),
		Username:   common.TrimmedPtr(in.Username),
		Notes:      common.TrimmedPtr(in.Notes),
		Categories: models.NormalizeCategories(in.Categories),
		UserID:     cu.ID,
	}

	out, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.AccountWithIdentities, error) {
		accounts := s.repomanager.Accounts(tx)

		if err := rejectDuplicateAccount(ctx, s.repomanager, tx, account, ""); err != nil {
			return nil, err
		}

		identities, err := s.resolveIdentities(ctx, tx, cu, in.Identities)
		if err != nil {
			return nil, err
		}

		created, err := accounts.Create(ctx, account)
		if err != nil {
			return nil, err
		}

		conns := s.repomanager.Connections(tx)
		for _, identity := range identities {
			if _, err := conns.Create(ctx, created.ID, identity.ID); err != nil {
				return nil, err
			}
		}

		return &models.AccountWithIdentities{Account: *created, Identities: identities}, nil
	})
	if err != nil {
		return nil, s.explainConflict(ctx, account, "", err)
	}

	s.logger.Info(ctx, "account created", "account_id", out.ID, "identities", len(out.Identities))
	return out, nil
}

// resolveIdentities maps inputs to owned identities, creating (type, value)
// pairs that do not exist yet. The result has no duplicates.
func (s *AccountService) resolveIdentities(ctx context.Context, tx dbx.DBTX, cu models.CurrentUser, in []IdentityInput) ([]models.Identity, error) {
	repo := s.repomanager.Identities(tx)
	seen := make(map[string]struct{}, len(in))
	out := make([]models.Identity, 0, len(in))

	for idx, ref := range in {
		var identity *models.Identity

		if ref.ID != "" {
			i, err := ownedIdentity(ctx, s.repomanager, tx, cu, ref.ID)
			if err != nil {
				return nil, err
			}
			identity = i
		} else {
			t, err := models.ParseIdentityType(ref.Type)
			if err != nil {
				return nil, validationError("identities[%d]: %v", idx, err)
			}
			value := strings.TrimSpace(ref.Value)
			if value == "" {
				return nil, validationError("identities[%d]: value is required", idx)
			}

			identity, err = repo.FindByNaturalKey(ctx, cu.ID, t, value)
			if errors.Is(err, common.ErrorNotFound) {
				identity, err = repo.Create(ctx, &models.Identity{UserID: cu.ID, Type: t, Value: value})
			}
			if err != nil {
				return nil, err
			}
		}

		if _, dup := seen[identity.ID]; dup {
			continue
		}
		seen[identity.ID] = struct{}{}
		out = append(out, *identity)
	}
	return out, nil
}

// Update applies a partial update and re-checks (name, username) against
// the user's other accounts.
func (s *AccountService) Update(ctx context.Context, cu models.CurrentUser, id string, in UpdateAccountInput) (*models.Account, error) {
	if in.empty() {
		return nil, validationError("at least one of name, username, notes, categories is required")
	}
	if in.Name.Set {
		if in.Name.Value == nil || strings.TrimSpace(*in.Name.Value) == "" {
			return nil, validationError("name must be a non-empty string")
		}
	}

	var candidate *models.Account
	out, err := dbx.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.Account, error) {
		account, err := ownedAccount(ctx, s.repomanager, tx, cu, id)
		if err != nil {
			return nil, err
		}
		candidate = account

		if in.Name.Set {
			account.Name = strings.TrimSpace(*in.Name.Value)
		}
		if in.Username.Set {
			account.Username = common.TrimmedPtr(in.Username.Value)
		}
		if in.Notes.Set {
			account.Notes = common.TrimmedPtr(in.Notes.Value)
		}
		if in.Categories.Set {
			var raw []string
			if in.Categories.Value != nil {
				raw = *in.Categories.Value
			}
			account.Categories = models.NormalizeCategories(raw)
		}

		if err := rejectDuplicateAccount(ctx, s.repomanager, tx, account, account.ID); err != nil {
			return nil, err
		}
		if err := s.repomanager.Accounts(tx).Update(ctx, account); err != nil {
			return nil, err
		}
		return account, nil
	})
	if err != nil && candidate != nil {
		return nil, s.explainConflict(ctx, candidate, candidate.ID, err)
	}
	return out, err
}

// Delete removes the account's connections and then the account itself.
func (s *AccountService) Delete(ctx context.Context, cu models.CurrentUser, id string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := ownedAccount(ctx, s.repomanager, tx, cu, id); err != nil {
			return err
		}
		if _, err := s.repomanager.Connections(tx).DeleteByAccount(ctx, id); err != nil {
			return err
		}
		return s.repomanager.Accounts(tx).Delete(ctx, id)
	})
}

// DeleteUnlinked removes every account without connections and returns how
// many were removed.
func (s *AccountService) DeleteUnlinked(ctx context.Context, cu models.CurrentUser) (int64, error) {
	n, err := s.repomanager.Accounts(s.db).DeleteUnlinked(ctx, cu.ID)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "unlinked accounts removed", "count", n)
	return n, nil
}

// BulkResult is the outcome of a bulk import.
type BulkResult struct {
	Created  int                  `json:"created"`
	Skipped  int                  `json:"skipped"`
	Rejected int                  `json:"rejected"`
	Rows     []importer.RowResult `json:"rows"`
}

// BulkImport sanitizes rows and inserts every accepted one in a single
// transaction. Rows that duplicate an existing account, or an earlier row
// of the same batch, are skipped and reported.
func (s *AccountService) BulkImport(ctx context.Context, cu models.CurrentUser, rows []map[string]any) (*BulkResult, error) {
	results := importer.Sanitize(rows)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repomanager.Accounts(tx)

		existing, err := accounts.ListByUser(ctx, cu.ID)
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(existing)+len(results))
		for _, a := range existing {
			seen[naturalKey(a.Name, a.Username)] = struct{}{}
		}

		for i := range results {
			r := &results[i]
			if r.Status != importer.RowAccepted {
				continue
			}
			key := naturalKey(r.Account.Name, r.Account.Username)
			if _, dup := seen[key]; dup {
				r.Status = importer.RowDuplicate
				r.Reason = "account already exists"
				continue
			}
			seen[key] = struct{}{}

			r.Account.UserID = cu.ID
			if _, err := accounts.Create(ctx, r.Account); err != nil {
				return err
			}
			r.Status = importer.RowCreated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := &BulkResult{Rows: results}
	for _, r := range results {
		switch r.Status {
		case importer.RowCreated:
			out.Created++
		case importer.RowDuplicate:
			out.Skipped++
		case importer.RowRejected:
			out.Rejected++
		}
	}
	s.logger.Info(ctx, "bulk import finished", "created", out.Created, "skipped", out.Skipped, "rejected", out.Rejected)
	return out, nil
}

func naturalKey(name string, username *string) string {
	return name + "\x00" + common.StringValue(username)
}

// explainConflict turns a unique violation lost to a concurrent writer into
// the same *DuplicateAccountError the pre-check returns. The aborted
// transaction is gone, so the lookup runs on the pool.
func (s *AccountService) explainConflict(ctx context.Context, a *models.Account, excludeID string, err error) error {
	var dup *DuplicateAccountError
	if errors.As(err, &dup) || !errors.Is(err, common.ErrorConflict) {
		return err
	}
	if lookupErr := rejectDuplicateAccount(ctx, s.repomanager, s.db, a, excludeID); lookupErr != nil {
		return lookupErr
	}
	return err
}

func rejectDuplicateAccount(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX, a *models.Account, excludeID string) error {
	dup, err := m.Accounts(tx).FindDuplicate(ctx, a.UserID, a.Name, a.Username, excludeID)
	switch {
	case err == nil:
		return &DuplicateAccountError{Existing: dup}
	case errors.Is(err, common.ErrorNotFound):
		return nil
	default:
		return err
	}
}
