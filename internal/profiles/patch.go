package profiles

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Patch is a sparse update of the /user/ representation. A nil field was not
// sent by the client.
type Patch struct {
	FirstName      *string        `json:"first_name"`
	LastName       *string        `json:"last_name"`
	Username       *string        `json:"username"`
	Email          *string        `json:"email"`
	PhoneNumber    *string        `json:"phone_number"`
	ProfilePicture *string        `json:"profile_picture"`
	About          *string        `json:"about"`
	Address        []AddressInput `json:"address"`
	BirthDate      *Date          `json:"birth_date"`
	Transportation *string        `json:"transportation"`
	Gender         *string        `json:"gender"`
	IDNumber       *IDNumber      `json:"id_number"`
	IDImages       []IDImageInput `json:"id_images"`
	AcceptTerms    *bool          `json:"accept_terms"`
	IsTasker       *bool          `json:"is_tasker"`
}

// AddressInput is one entry of the address list.
type AddressInput struct {
	Street         string `json:"street"`
	BuildingNumber *int   `json:"building_number"`
	City           string `json:"city"`
	Country        string `json:"country"`
	PostalCode     *int   `json:"postal_code"`
}

// IDImageInput carries a base64 image, or the URL of an image the user
// already has.
type IDImageInput struct {
	Title string `json:"title"`
	Image string `json:"image"`
}

// IDNumber is the raw text of an id_number sent either as a JSON string or as
// a JSON number. Digits and length are checked by the service so a bad value
// is reported against the field.
type IDNumber string

func (n *IDNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("id_number: %w", err)
		}
		*n = IDNumber(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return errors.New("id_number: expected a string or a number")
	}
	*n = IDNumber(num.String())
	return nil
}

// Date is a calendar date in YYYY-MM-DD form.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("birth_date: %w", err)
	}
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return errors.New("birth_date: date has wrong format, use YYYY-MM-DD")
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}
