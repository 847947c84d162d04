package models

import "time"

// Profile holds the mutable marketplace fields of a user. Every user has one.
type Profile struct {
	UserID         int64      `json:"-"`
	About          string     `json:"about"`
	BirthDate      *time.Time `json:"birth_date"`
	PhoneNumber    string     `json:"phone_number"`
	Transportation string     `json:"transportation"`
	Gender         string     `json:"gender"`
	IDNumber       string     `json:"id_number"`
	AcceptTerms    bool       `json:"accept_terms"`
	IsTasker       bool       `json:"is_tasker"`
	ProfilePicture string     `json:"profile_picture"`
	Created        time.Time  `json:"-"`
	Modified       time.Time  `json:"-"`
}

// Address is a postal address attached to a user.
type Address struct {
	ID             int64  `json:"id"`
	Street         string `json:"street"`
	BuildingNumber *int   `json:"building_number"`
	City           string `json:"city"`
	Country        string `json:"country"`
	PostalCode     *int   `json:"postal_code"`
}

// IDImage is a scanned identity document.
type IDImage struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Image string `json:"image"`
}

// Account bundles everything rendered by the /user/ endpoint.
type Account struct {
	User      User
	Profile   Profile
	Addresses []Address
	IDImages  []IDImage
}
