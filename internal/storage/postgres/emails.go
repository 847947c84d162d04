package postgres

import (
	"context"
	"fmt"

	"github.com/hongminglow/taskkez-be/internal/models"
	"github.com/hongminglow/taskkez-be/internal/storage"
	"github.com/jackc/pgx/v5"
)

const emailColumns = `id, user_id, email, verified, is_primary`

// AddEmail records a new address for a user.
func (s *Store) AddEmail(ctx context.Context, rec models.EmailAddress) (models.EmailAddress, error) {
	const query = `
	INSERT INTO email_addresses (user_id, email, verified, is_primary)
	VALUES ($1, $2, $3, $4)
	RETURNING ` + emailColumns + `;
	`
	row := s.conn(ctx).QueryRow(ctx, query, rec.UserID, rec.Email, rec.Verified, rec.Primary)
	out, err := scanEmail(row)
	if err != nil {
		return models.EmailAddress{}, mapError(err)
	}
	return out, nil
}

// LockEmails lists a user's addresses with FOR UPDATE so that concurrent
// confirmations for the same user serialise.
func (s *Store) LockEmails(ctx context.Context, userID int64) ([]models.EmailAddress, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT `+emailColumns+` FROM email_addresses WHERE user_id = $1 ORDER BY id FOR UPDATE;`, userID)
	if err != nil {
		return nil, fmt.Errorf("lock email addresses: %w", err)
	}
	defer rows.Close()

	var out []models.EmailAddress
	for rows.Next() {
		rec, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FindEmail fetches the user's record for email, ignoring case.
func (s *Store) FindEmail(ctx context.Context, userID int64, email string) (models.EmailAddress, error) {
	row := s.conn(ctx).QueryRow(ctx,
		`SELECT `+emailColumns+` FROM email_addresses WHERE user_id = $1 AND lower(email) = lower($2);`, userID, email)
	return scanEmail(row)
}

// FindUnverifiedEmail fetches the most recent unverified record for email across users.
func (s *Store) FindUnverifiedEmail(ctx context.Context, email string) (models.EmailAddress, error) {
	row := s.conn(ctx).QueryRow(ctx,
		`SELECT `+emailColumns+` FROM email_addresses WHERE lower(email) = lower($1) AND NOT verified ORDER BY id DESC LIMIT 1;`, email)
	return scanEmail(row)
}

// EmailInUse reports whether an account other than exceptUserID claims email,
// either as its login address or as a registered email record.
func (s *Store) EmailInUse(ctx context.Context, email string, exceptUserID int64) (bool, error) {
	const query = `
	SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)
	    OR EXISTS (SELECT 1 FROM email_addresses WHERE lower(email) = lower($1) AND user_id <> $2);
	`
	var used bool
	err := s.conn(ctx).QueryRow(ctx, query, email, exceptUserID).Scan(&used)
	return used, err
}

// MarkVerified flags an address as confirmed.
func (s *Store) MarkVerified(ctx context.Context, id int64) error {
	tag, err := s.conn(ctx).Exec(ctx, `UPDATE email_addresses SET verified = TRUE WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetPrimary makes id the only primary address of the user.
func (s *Store) SetPrimary(ctx context.Context, userID, id int64) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE email_addresses SET is_primary = (id = $2) WHERE user_id = $1;`, userID, id)
	if err != nil {
		return fmt.Errorf("set primary email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteEmails removes the user's records for email, keeping exceptID.
func (s *Store) DeleteEmails(ctx context.Context, userID int64, email string, exceptID int64) (int64, error) {
	tag, err := s.conn(ctx).Exec(ctx,
		`DELETE FROM email_addresses WHERE user_id = $1 AND lower(email) = lower($2) AND id <> $3;`, userID, email, exceptID)
	if err != nil {
		return 0, fmt.Errorf("delete email addresses: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEmail(row pgx.Row) (models.EmailAddress, error) {
	var rec models.EmailAddress
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Email, &rec.Verified, &rec.Primary); err != nil {
		return models.EmailAddress{}, notFound(err)
	}
	return rec, nil
}
