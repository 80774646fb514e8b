package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/dbx"
	"github.com/dmitrijs2005/credengine/internal/server/models"
)

// PostgresRepository reads the directory from the schema in
// internal/server/migrations.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LookupAccount(ctx context.Context, name string) (*models.Account, error) {
	query :=
		`SELECT r.id, r.name, COALESCE(a.value, '') FROM records r
		 LEFT JOIN attributes a ON a.record_id = r.id AND a.name = $3 AND a.position = 0
		 WHERE r.record_type = $1 AND r.name = $2
		 `

	acct := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, common.RecordTypeUsers, name, common.AttrGeneratedUID).
		Scan(&acct.Handle, &acct.Name, &acct.GUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return acct, nil
}

func (r *PostgresRepository) ReadAttribute(ctx context.Context, handle, name string) ([]string, error) {
	return readAttribute(ctx, r.db, handle, name)
}

func readAttribute(ctx context.Context, db dbx.DBTX, handle, name string) ([]string, error) {
	query :=
		`SELECT value FROM attributes
		 WHERE record_id = $1 AND name = $2
		 ORDER BY position
		 `

	rows, err := db.QueryContext(ctx, query, handle, name)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return values, nil
}

func (r *PostgresRepository) WriteAttribute(ctx context.Context, handle, name string, values []string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM attributes WHERE record_id = $1 AND name = $2`, handle, name); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		for i, v := range values {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO attributes (record_id, name, position, value) VALUES ($1, $2, $3, $4)`,
				handle, name, i, v); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepository) IsMember(ctx context.Context, group, name string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_name = $1 AND member_name = $2)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, group, name).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
