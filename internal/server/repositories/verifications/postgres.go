// Package verifications is the PostgreSQL store for email verification codes
// and link tokens.
package verifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const columns = `id, email, token, code, expires_at, verified_at, used, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scan(row interface{ Scan(...any) error }) (*models.VerificationRecord, error) {
	v := &models.VerificationRecord{}
	if err := row.Scan(&v.ID, &v.Email, &v.Token, &v.Code, &v.ExpiresAt, &v.VerifiedAt, &v.Used, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) LockEmail(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.VerificationRecord) (*models.VerificationRecord, error) {
	query :=
		`INSERT INTO email_verifications (email, token, code, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	if err := r.db.QueryRowContext(ctx, query, rec.Email, rec.Token, rec.Code, rec.ExpiresAt).Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.VerificationRecord, error) {
	return scan(r.db.QueryRowContext(ctx,
		`SELECT `+columns+` FROM email_verifications WHERE token = $1`, token))
}

const byEmailAndCodeUnused = `SELECT ` + columns + ` FROM email_verifications
		 WHERE email = $1 AND code = $2 AND used = FALSE
		 ORDER BY created_at DESC
		 LIMIT 1`

func (r *PostgresRepository) FindByEmailAndCodeUnused(ctx context.Context, email, code string) (*models.VerificationRecord, error) {
	return scan(r.db.QueryRowContext(ctx, byEmailAndCodeUnused, email, code))
}

func (r *PostgresRepository) LockByEmailAndCodeUnused(ctx context.Context, email, code string) (*models.VerificationRecord, error) {
	return scan(r.db.QueryRowContext(ctx, byEmailAndCodeUnused+` FOR UPDATE`, email, code))
}

// MarkVerified stamps verified_at once; a later call keeps the first stamp.
func (r *PostgresRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE email_verifications SET verified_at = COALESCE(verified_at, $2)
		 WHERE id = $1 AND used = FALSE`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE email_verifications SET used = TRUE WHERE id = $1 AND used = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) MarkUsedInSavepoint(ctx context.Context, id string) (bool, error) {
	var flipped bool
	err := dbx.Savepoint(ctx, r.db, "mark_verification_used", func(ctx context.Context) error {
		var err error
		flipped, err = r.MarkUsed(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	return flipped, nil
}

func (r *PostgresRepository) DeleteUnusedByEmail(ctx context.Context, email string) (int64, error) {
	return r.delete(ctx, `DELETE FROM email_verifications WHERE email = $1 AND used = FALSE`, email)
}

func (r *PostgresRepository) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	return r.delete(ctx, `DELETE FROM email_verifications WHERE expires_at < $1`, now)
}

func (r *PostgresRepository) delete(ctx context.Context, query string, arg any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
