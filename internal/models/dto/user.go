package dto

import "github.com/hongminglow/taskkez-be/internal/models"

// UserResponse is the /user/ representation: identity fields flattened together
// with the profile and its collections.
type UserResponse struct {
	PK             int64            `json:"pk"`
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name"`
	Username       string           `json:"username"`
	Email          string           `json:"email"`
	PhoneNumber    *string          `json:"phone_number"`
	ProfilePicture *string          `json:"profile_picture"`
	About          string           `json:"about"`
	Address        []models.Address `json:"address"`
	BirthDate      *string          `json:"birth_date"`
	Transportation *string          `json:"transportation"`
	Gender         *string          `json:"gender"`
	IDNumber       *string          `json:"id_number"`
	IDImages       []models.IDImage `json:"id_images"`
	AcceptTerms    bool             `json:"accept_terms"`
	IsTasker       bool             `json:"is_tasker"`
}

// NewUserResponse renders an account. mediaURL prefixes stored blob references.
func NewUserResponse(acct models.Account, mediaURL string) UserResponse {
	p := acct.Profile
	out := UserResponse{
		PK:             acct.User.ID,
		FirstName:      acct.User.FirstName,
		LastName:       acct.User.LastName,
		Username:       acct.User.Username,
		Email:          acct.User.Email,
		PhoneNumber:    optional(p.PhoneNumber),
		ProfilePicture: optional(mediaRef(mediaURL, p.ProfilePicture)),
		About:          p.About,
		Address:        acct.Addresses,
		Transportation: optional(p.Transportation),
		Gender:         optional(p.Gender),
		IDNumber:       optional(p.IDNumber),
		AcceptTerms:    p.AcceptTerms,
		IsTasker:       p.IsTasker,
	}
	if p.BirthDate != nil {
		s := p.BirthDate.Format("2006-01-02")
		out.BirthDate = &s
	}
	if out.Address == nil {
		out.Address = []models.Address{}
	}
	out.IDImages = make([]models.IDImage, 0, len(acct.IDImages))
	for _, img := range acct.IDImages {
		img.Image = mediaRef(mediaURL, img.Image)
		out.IDImages = append(out.IDImages, img)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mediaRef(mediaURL, ref string) string {
	if ref == "" {
		return ""
	}
	return mediaURL + ref
}
