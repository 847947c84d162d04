package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/hongminglow/taskkez-be/internal/models"
	"github.com/hongminglow/taskkez-be/internal/storage"
	"github.com/jackc/pgx/v5"
)

const userColumns = `u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash, u.is_active, u.date_joined`

// CreateUser inserts a new user row together with its empty profile.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		WITH u AS (
			INSERT INTO users (username, email, first_name, last_name, password_hash, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, username, email, first_name, last_name, password_hash, is_active, date_joined
		), p AS (
			INSERT INTO profiles (user_id) SELECT id FROM u
		)
		SELECT ` + userColumns + ` FROM u;
		`
	row := s.conn(ctx).QueryRow(ctx, query, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.IsActive)
	created, err := scanUser(row)
	if err != nil {
		return models.User{}, mapError(err)
	}
	return created, nil
}

// GetUser fetches a user by primary key.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	row := s.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1;`, id)
	return scanUser(row)
}

// FindByUsername fetches a user by username, ignoring case.
func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE lower(u.username) = lower($1);`, username)
	return scanUser(row)
}

// FindByEmail fetches a user by email address, ignoring case.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.conn(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE lower(u.email) = lower($1) ORDER BY u.id LIMIT 1;`, email)
	return scanUser(row)
}

// FindByUsernameOrEmail fetches the first user matching the identifier as username or email.
func (s *Store) FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	const query = `
	SELECT ` + userColumns + `
	FROM users u
	WHERE lower(u.username) = lower($1) OR lower(u.email) = lower($1)
	ORDER BY (lower(u.username) = lower($1)) DESC, u.id
	LIMIT 1;
	`
	row := s.conn(ctx).QueryRow(ctx, query, identifier)
	return scanUser(row)
}

// UpdateUser writes the mutable identity columns.
func (s *Store) UpdateUser(ctx context.Context, user models.User) error {
	const query = `
	UPDATE users
	SET username = $2, email = $3, first_name = $4, last_name = $5, is_active = $6
	WHERE id = $1;
	`
	tag, err := s.conn(ctx).Exec(ctx, query, user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.IsActive)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetPassword replaces the stored password hash.
func (s *Store) SetPassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := s.conn(ctx).Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1;`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UsernameTaken reports whether another user already holds username.
func (s *Store) UsernameTaken(ctx context.Context, username string, exceptUserID int64) (bool, error) {
	var taken bool
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(username) = lower($1) AND id <> $2);`,
		username, exceptUserID).Scan(&taken)
	return taken, err
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash, &user.IsActive, &user.DateJoined); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
