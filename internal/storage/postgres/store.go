package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/hongminglow/taskkez-be/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

// Options tunes schema-level policy.
type Options struct {
	// UniqueEmail enforces one account per address with a unique index.
	UniqueEmail bool
}

// Store provides Postgres-backed persistence for accounts and profiles.
type Store struct {
	pool *pgxpool.Pool
	opts Options
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewStore creates a new Store and runs migrations.
func NewStore(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool, opts: opts}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			date_joined TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_idx ON users (lower(username));`,
		`CREATE TABLE IF NOT EXISTS email_addresses (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			email TEXT NOT NULL,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			is_primary BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS email_addresses_user_email_idx ON email_addresses (user_id, lower(email));`,
		`CREATE INDEX IF NOT EXISTS email_addresses_email_idx ON email_addresses (lower(email));`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			about TEXT NOT NULL DEFAULT '',
			birth_date DATE,
			phone_number TEXT,
			transportation VARCHAR(1),
			gender VARCHAR(1),
			id_number TEXT,
			accept_terms BOOLEAN NOT NULL DEFAULT FALSE,
			is_tasker BOOLEAN NOT NULL DEFAULT FALSE,
			profile_picture TEXT,
			created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			modified TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT profiles_phone_number_key UNIQUE (phone_number)
		);`,
		`CREATE TABLE IF NOT EXISTS addresses (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			street VARCHAR(250) NOT NULL,
			building_number INTEGER,
			city VARCHAR(3),
			country VARCHAR(250) NOT NULL DEFAULT 'Egypt',
			postal_code INTEGER,
			created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			modified TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS addresses_user_idx ON addresses (user_id);`,
		`CREATE TABLE IF NOT EXISTS id_images (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title VARCHAR(200),
			image TEXT NOT NULL,
			created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			modified TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS id_images_user_idx ON id_images (user_id);`,
	}
	if s.opts.UniqueEmail {
		stmts = append(stmts, `CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email)) WHERE email <> '';`)
	} else {
		stmts = append(stmts, `DROP INDEX IF EXISTS users_email_lower_idx;`)
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// conn returns the transaction carried by ctx, or the pool.
func (s *Store) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// mapError turns unique violations into storage.ConstraintError.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &storage.ConstraintError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
