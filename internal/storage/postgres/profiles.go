package postgres

import (
	"context"
	"fmt"

	"github.com/hongminglow/taskkez-be/internal/models"
	"github.com/hongminglow/taskkez-be/internal/storage"
)

// GetProfile fetches the profile of a user.
func (s *Store) GetProfile(ctx context.Context, userID int64) (models.Profile, error) {
	const query = `
	SELECT user_id, about, birth_date, COALESCE(phone_number, ''), COALESCE(transportation, ''),
		COALESCE(gender, ''), COALESCE(id_number, ''), accept_terms, is_tasker,
		COALESCE(profile_picture, ''), created, modified
	FROM profiles
	WHERE user_id = $1;
	`
	var p models.Profile
	err := s.conn(ctx).QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.About, &p.BirthDate, &p.PhoneNumber, &p.Transportation,
		&p.Gender, &p.IDNumber, &p.AcceptTerms, &p.IsTasker,
		&p.ProfilePicture, &p.Created, &p.Modified,
	)
	if err != nil {
		return models.Profile{}, notFound(err)
	}
	return p, nil
}

// UpdateProfile overwrites every profile column. Empty optional strings are stored as NULL.
func (s *Store) UpdateProfile(ctx context.Context, p models.Profile) error {
	const query = `
	UPDATE profiles
	SET about = $2, birth_date = $3, phone_number = NULLIF($4, ''), transportation = NULLIF($5, ''),
		gender = NULLIF($6, ''), id_number = NULLIF($7, ''), accept_terms = $8, is_tasker = $9,
		profile_picture = NULLIF($10, ''), modified = NOW()
	WHERE user_id = $1;
	`
	tag, err := s.conn(ctx).Exec(ctx, query,
		p.UserID, p.About, p.BirthDate, p.PhoneNumber, p.Transportation,
		p.Gender, p.IDNumber, p.AcceptTerms, p.IsTasker, p.ProfilePicture,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PhoneTaken reports whether a profile other than exceptUserID's holds phone.
func (s *Store) PhoneTaken(ctx context.Context, phone string, exceptUserID int64) (bool, error) {
	var taken bool
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE phone_number = $1 AND user_id <> $2);`,
		phone, exceptUserID).Scan(&taken)
	return taken, err
}

// ListAddresses returns a user's addresses in insertion order.
func (s *Store) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	rows, err := s.conn(ctx).Query(ctx, `
	SELECT id, street, building_number, COALESCE(city, ''), country, postal_code
	FROM addresses WHERE user_id = $1 ORDER BY id;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	out := []models.Address{}
	for rows.Next() {
		var a models.Address
		if err := rows.Scan(&a.ID, &a.Street, &a.BuildingNumber, &a.City, &a.Country, &a.PostalCode); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReplaceAddresses swaps the user's address list for addrs.
func (s *Store) ReplaceAddresses(ctx context.Context, userID int64, addrs []models.Address) ([]models.Address, error) {
	q := s.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM addresses WHERE user_id = $1;`, userID); err != nil {
		return nil, fmt.Errorf("clear addresses: %w", err)
	}
	const insert = `
	INSERT INTO addresses (user_id, street, building_number, city, country, postal_code)
	VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	RETURNING id;
	`
	out := make([]models.Address, 0, len(addrs))
	for _, a := range addrs {
		if a.Country == "" {
			a.Country = models.DefaultCountry
		}
		if err := q.QueryRow(ctx, insert, userID, a.Street, a.BuildingNumber, a.City, a.Country, a.PostalCode).Scan(&a.ID); err != nil {
			return nil, fmt.Errorf("insert address: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// ListIDImages returns a user's identity images in insertion order.
func (s *Store) ListIDImages(ctx context.Context, userID int64) ([]models.IDImage, error) {
	rows, err := s.conn(ctx).Query(ctx,
		`SELECT id, COALESCE(title, ''), image FROM id_images WHERE user_id = $1 ORDER BY id;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list id images: %w", err)
	}
	defer rows.Close()

	out := []models.IDImage{}
	for rows.Next() {
		var img models.IDImage
		if err := rows.Scan(&img.ID, &img.Title, &img.Image); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// ReplaceIDImages swaps the user's identity images for images.
func (s *Store) ReplaceIDImages(ctx context.Context, userID int64, images []models.IDImage) ([]models.IDImage, error) {
	q := s.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM id_images WHERE user_id = $1;`, userID); err != nil {
		return nil, fmt.Errorf("clear id images: %w", err)
	}
	out := make([]models.IDImage, 0, len(images))
	for _, img := range images {
		err := q.QueryRow(ctx,
			`INSERT INTO id_images (user_id, title, image) VALUES ($1, NULLIF($2, ''), $3) RETURNING id;`,
			userID, img.Title, img.Image).Scan(&img.ID)
		if err != nil {
			return nil, fmt.Errorf("insert id image: %w", err)
		}
		out = append(out, img)
	}
	return out, nil
}
