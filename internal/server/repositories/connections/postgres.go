package connections

import (
	"context"
	"fmt"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/dbx"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, accountID, identityID string) (*models.Connection, error) {
	query :=
		`INSERT INTO connections (id, account_id, identity_id)
		 VALUES ($1, $2, $3)`

	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx, query, id, accountID, identityID); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &models.Connection{ID: id, AccountID: accountID, IdentityID: identityID}, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, accountID, identityID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM connections WHERE account_id = $1 AND identity_id = $2`, accountID, identityID)
}

func (r *PostgresRepository) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM connections WHERE account_id = $1`, accountID)
}

func (r *PostgresRepository) DeleteByIdentity(ctx context.Context, identityID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM connections WHERE identity_id = $1`, identityID)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Connection, error) {
	query :=
		`SELECT c.id, c.account_id, c.identity_id
		 FROM connections c
		 JOIN accounts a ON a.id = c.account_id
		 WHERE a.user_id = $1
		 ORDER BY c.account_id, c.identity_id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := make([]models.Connection, 0)
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.ID, &c.AccountID, &c.IdentityID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
