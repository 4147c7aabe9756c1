// Package session persists the signed-in account of the CLI between runs.
//
// At most one session is stored. Saving replaces it, Clear removes it.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
)

// Session is what the client needs to resume talking to the server.
type Session struct {
	Subject      string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

type Repository interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	UpdateTokens(ctx context.Context, accessToken, refreshToken string) error
	Clear(ctx context.Context) error
}

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Load returns (nil, nil) when nobody is signed in.
func (r *SQLiteRepository) Load(ctx context.Context) (*Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx,
		`SELECT subject, access_token, refresh_token, updated_at FROM session WHERE id = 1`,
	).Scan(&s.Subject, &s.AccessToken, &s.RefreshToken, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &s, nil
}

func (r *SQLiteRepository) Save(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session (id, subject, access_token, refresh_token, updated_at) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			updated_at = excluded.updated_at
	`, s.Subject, s.AccessToken, s.RefreshToken, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// UpdateTokens rotates the tokens of the stored session. Without a session
// it does nothing.
func (r *SQLiteRepository) UpdateTokens(ctx context.Context, accessToken, refreshToken string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE session SET access_token = ?, refresh_token = ?, updated_at = ? WHERE id = 1`,
		accessToken, refreshToken, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update session tokens: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
