package identities

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts identity. A row with the same (user, type, value) yields
// common.ErrorConflict.
func (r *PostgresRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	query :=
		`INSERT INTO identities (id, user_id, type, value)
		 VALUES ($1, $2, $3, $4)`

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, query, id, identity.UserID, string(identity.Type), identity.Value)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	identity.ID = id
	return identity, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	query :=
		`SELECT id, user_id, type, value FROM identities
		 WHERE id = $1`

	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) FindByNaturalKey(ctx context.Context, userID string, t models.IdentityType, value string) (*models.Identity, error) {
	query :=
		`SELECT id, user_id, type, value FROM identities
		 WHERE user_id = $1 AND type = $2 AND value = $3`

	return scanOne(r.db.QueryRowContext(ctx, query, userID, string(t), value))
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Identity, error) {
	query :=
		`SELECT id, user_id, type, value FROM identities
		 WHERE user_id = $1
		 ORDER BY type, value`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	items := make([]models.Identity, 0)
	for rows.Next() {
		var i models.Identity
		if err := rows.Scan(&i.ID, &i.UserID, &i.Type, &i.Value); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

func (r *PostgresRepository) Update(ctx context.Context, identity *models.Identity) error {
	query :=
		`UPDATE identities SET type = $2, value = $3
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, identity.ID, string(identity.Type), identity.Value)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func scanOne(row *sql.Row) (*models.Identity, error) {
	i := &models.Identity{}
	if err := row.Scan(&i.ID, &i.UserID, &i.Type, &i.Value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return i, nil
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
