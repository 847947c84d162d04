package models

import "time"

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID           int64     `json:"pk"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"-"`
	DateJoined   time.Time `json:"-"`
}

// EmailAddress is one address a user has claimed. Exactly one is primary once the
// account settles, and its value mirrors User.Email.
type EmailAddress struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Primary  bool   `json:"primary"`
}
