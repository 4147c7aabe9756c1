// Package users is the PostgreSQL identity store.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const userColumns = `id, email, username, nickname, password_hash, name, profile_image, role,
		provider, provider_id, enabled, email_verified, email_verified_at, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var role, provider string
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Nickname, &u.PasswordHash, &u.Name, &u.ProfileImage, &role,
		&provider, &u.ProviderID, &u.Enabled, &u.EmailVerified, &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.Provider = models.AuthProvider(provider)
	return u, nil
}

func writeError(err error) error {
	if constraint, ok := dbx.IsUniqueViolation(err); ok {
		return fmt.Errorf("%w: %s", common.ErrDuplicateIdentity, constraint)
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, username, nickname, password_hash, name, profile_image, role,
		                    provider, provider_id, enabled, email_verified, email_verified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.Username, user.Nickname, user.PasswordHash, user.Name, user.ProfileImage, string(user.Role),
		string(user.Provider), user.ProviderID, user.Enabled, user.EmailVerified, user.EmailVerifiedAt,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, writeError(err)
	}
	return user, nil
}

// Update rewrites every mutable column of the row identified by user.ID.
func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users SET email = $2, username = $3, nickname = $4, name = $5, profile_image = $6,
		        role = $7, enabled = $8, email_verified = $9, email_verified_at = $10, updated_at = now()
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.Nickname, user.Name, user.ProfileImage,
		string(user.Role), user.Enabled, user.EmailVerified, user.EmailVerifiedAt)
	if err != nil {
		return writeError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, args ...any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `email = $1`, email)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, `username = $1`, username)
}

func (r *PostgresRepository) FindByNickname(ctx context.Context, nickname string) (*models.User, error) {
	return r.findOne(ctx, `nickname = $1`, nickname)
}

func (r *PostgresRepository) FindByProviderAndProviderID(ctx context.Context, provider models.AuthProvider, providerID string) (*models.User, error) {
	return r.findOne(ctx, `provider = $1 AND provider_id = $2`, string(provider), providerID)
}

func (r *PostgresRepository) exists(ctx context.Context, column, value string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE ` + column + ` = $1)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, value).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

func (r *PostgresRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

func (r *PostgresRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	return r.exists(ctx, "nickname", nickname)
}

func (r *PostgresRepository) ListWithoutNickname(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE nickname IS NULL ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
