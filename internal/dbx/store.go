package dbx

import (
	"context"
	"database/sql"
)

// Store pairs a handle for single statements with a transaction runner.
// Services depend on it instead of *sql.DB.
type Store interface {
	Conn() DBTX
	InTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

// SQLStore is the database/sql Store.
type SQLStore struct {
	db   *sql.DB
	opts *sql.TxOptions
}

func NewSQLStore(db *sql.DB, opts *sql.TxOptions) *SQLStore {
	return &SQLStore{db: db, opts: opts}
}

func (s *SQLStore) Conn() DBTX { return s.db }

func (s *SQLStore) InTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	return WithTx(ctx, s.db, s.opts, fn)
}
