package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/dbx"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/google/uuid"
)

const selectColumns = `SELECT id, user_id, name, username, notes, categories FROM accounts`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (id, user_id, name, username, notes, categories)
		 VALUES ($1, $2, $3, $4, $5, $6::text[])`

	cats, err := dbx.EncodeTextArray(account.Categories)
	if err != nil {
		return nil, fmt.Errorf("encode categories: %w", err)
	}

	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx, query, id, account.UserID, account.Name, account.Username, account.Notes, cats); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	account.ID = id
	if account.Categories == nil {
		account.Categories = []string{}
	}
	return account, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := selectColumns + `
		 WHERE id = $1`

	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindDuplicate(ctx context.Context, userID, name string, username *string, excludeID string) (*models.Account, error) {
	query := selectColumns + `
		 WHERE user_id = $1 AND name = $2 AND username IS NOT DISTINCT FROM $3 AND id::text <> $4
		 LIMIT 1`

	return scanOne(r.db.QueryRowContext(ctx, query, userID, name, username, excludeID))
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Account, error) {
	query := selectColumns + `
		 WHERE user_id = $1
		 ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := make([]models.Account, 0)
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Username, &a.Notes, dbx.TextArray(&a.Categories)); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) Update(ctx context.Context, account *models.Account) error {
	query :=
		`UPDATE accounts SET name = $2, username = $3, notes = $4, categories = $5::text[]
		 WHERE id = $1`

	cats, err := dbx.EncodeTextArray(account.Categories)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, account.ID, account.Name, account.Username, account.Notes, cats)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) DeleteUnlinked(ctx context.Context, userID string) (int64, error) {
	query :=
		`DELETE FROM accounts a
		 WHERE a.user_id = $1
		   AND NOT EXISTS (SELECT 1 FROM connections c WHERE c.account_id = a.id)`

	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func scanOne(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Username, &a.Notes, dbx.TextArray(&a.Categories)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
