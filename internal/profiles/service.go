// Package profiles merges sparse client updates into a user's identity,
// profile, addresses and identity images.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/accounts"
	"github.com/hongminglow/taskkez-be/internal/blob"
	"github.com/hongminglow/taskkez-be/internal/errs"
	"github.com/hongminglow/taskkez-be/internal/metrics"
	"github.com/hongminglow/taskkez-be/internal/models"
	"github.com/hongminglow/taskkez-be/internal/storage"
)

const (
	msgBlank         = "This field may not be blank."
	msgInvalidChoice = "\"%s\" is not a valid choice."
	msgDigitsOnly    = "Ensure this value contains only digits."
	msgMaxLength     = "Ensure this field has no more than %d characters."
	msgFutureDate    = "Birth date cannot be in the future."
	msgInvalidImage  = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	msgImageTooLarge = "The submitted file is too large."

	maxStreetLength = 250
	maxTitleLength  = 100
)

// BlobStore keeps uploaded images.
type BlobStore interface {
	Put(ctx context.Context, cat blob.Category, userID int64, payload string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Options tune validation and image handling.
type Options struct {
	IDNumberMaxLength int
	// MediaURL is the prefix under which stored images are rendered; an image
	// field echoing such a URL keeps the stored file.
	MediaURL string
}

// Service applies profile updates.
type Service struct {
	store    storage.Store
	accounts *accounts.Service
	blobs    BlobStore
	metrics  *metrics.Metrics
	log      *zap.Logger
	opts     Options
	now      func() time.Time
}

func NewService(store storage.Store, acc *accounts.Service, blobs BlobStore, m *metrics.Metrics, log *zap.Logger, opts Options) *Service {
	if opts.IDNumberMaxLength <= 0 {
		opts.IDNumberMaxLength = 14
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		accounts: acc,
		blobs:    blobs,
		metrics:  m,
		log:      log,
		opts:     opts,
		now:      time.Now,
	}
}

// Get returns the account representation of userID.
func (s *Service) Get(ctx context.Context, userID int64) (models.Account, error) {
	return accounts.LoadAccount(ctx, s.store, userID)
}

// plan is a validated Patch with normalised values.
type plan struct {
	firstName, lastName, username *string
	email                         string
	phone                         string
	picture                       string
	about                         string
	addresses                     []models.Address
	birthDate                     *time.Time
	transportation                string
	gender                        string
	idNumber                      string
	idImages                      []models.IDImage
	acceptTerms, isTasker         bool
}

// Update merges p into the account of userID. Profile-level fields are applied
// only when present and truthy; first_name, last_name and username whenever
// present. A changed email starts re-verification instead of being written.
func (s *Service) Update(ctx context.Context, userID int64, p Patch) (acct models.Account, err error) {
	defer func() { s.metrics.Event(metrics.EventProfileUpdate, err) }()

	current, err := accounts.LoadAccount(ctx, s.store, userID)
	if err != nil {
		return models.Account{}, err
	}
	pl, err := s.validate(ctx, current, p)
	if err != nil {
		return models.Account{}, err
	}

	uploaded, err := s.upload(ctx, userID, current, &pl)
	if err != nil {
		s.discard(ctx, uploaded)
		return models.Account{}, err
	}

	var pending models.EmailAddress
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.store.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if pl.firstName != nil {
			user.FirstName = *pl.firstName
		}
		if pl.lastName != nil {
			user.LastName = *pl.lastName
		}
		if pl.username != nil {
			user.Username = *pl.username
		}
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return err
		}

		if pl.email != "" {
			if pending, err = s.accounts.RequestEmailChange(ctx, user, pl.email); err != nil {
				return err
			}
		}

		profile, err := s.store.GetProfile(ctx, userID)
		if err != nil {
			return err
		}
		pl.applyTo(&profile)
		if err := s.store.UpdateProfile(ctx, profile); err != nil {
			return err
		}
		if pl.addresses != nil {
			if _, err := s.store.ReplaceAddresses(ctx, userID, pl.addresses); err != nil {
				return err
			}
		}
		if pl.idImages != nil {
			if _, err := s.store.ReplaceIDImages(ctx, userID, pl.idImages); err != nil {
				return err
			}
		}
		acct, err = accounts.LoadAccount(ctx, s.store, userID)
		return err
	})
	if err != nil {
		s.discard(ctx, uploaded)
		return models.Account{}, accounts.ConstraintFieldError(err)
	}

	if pending.ID != 0 {
		if err := s.accounts.SendConfirmation(ctx, acct.User, pending); err != nil {
			s.log.Error("send email change confirmation", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	s.discard(ctx, replaced(current, acct))
	return acct, nil
}

func (pl *plan) applyTo(profile *models.Profile) {
	if pl.phone != "" {
		profile.PhoneNumber = pl.phone
	}
	if pl.picture != "" {
		profile.ProfilePicture = pl.picture
	}
	if pl.about != "" {
		profile.About = pl.about
	}
	if pl.birthDate != nil {
		profile.BirthDate = pl.birthDate
	}
	if pl.transportation != "" {
		profile.Transportation = pl.transportation
	}
	if pl.gender != "" {
		profile.Gender = pl.gender
	}
	if pl.idNumber != "" {
		profile.IDNumber = pl.idNumber
	}
	if pl.acceptTerms {
		profile.AcceptTerms = true
	}
	if pl.isTasker {
		profile.IsTasker = true
	}
}

func (s *Service) validate(ctx context.Context, current models.Account, p Patch) (plan, error) {
	var pl plan
	fe := errs.FieldErrors{}

	for field, v := range map[string]*string{"first_name": p.FirstName, "last_name": p.LastName} {
		if v == nil {
			continue
		}
		trimmed := strings.TrimSpace(*v)
		if trimmed == "" {
			fe.Add(field, msgBlank)
			continue
		}
		if field == "first_name" {
			pl.firstName = &trimmed
		} else {
			pl.lastName = &trimmed
		}
	}

	if p.Username != nil {
		username := strings.TrimSpace(*p.Username)
		if err := s.accounts.CheckUsername(ctx, username, current.User.ID); err != nil {
			if !collect(fe, err) {
				return plan{}, err
			}
		} else {
			pl.username = &username
		}
	}

	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if email != "" && !strings.EqualFold(email, current.User.Email) {
			pl.email = email
		}
	}

	if p.PhoneNumber != nil && strings.TrimSpace(*p.PhoneNumber) != "" {
		phone, err := s.accounts.CheckPhone(ctx, *p.PhoneNumber, current.User.ID)
		if err != nil && !collect(fe, err) {
			return plan{}, err
		}
		pl.phone = phone
	}

	if p.About != nil {
		pl.about = *p.About
	}

	if p.BirthDate != nil && !p.BirthDate.IsZero() {
		if p.BirthDate.After(s.now()) {
			fe.Add("birth_date", msgFutureDate)
		} else {
			d := p.BirthDate.Time
			pl.birthDate = &d
		}
	}

	if p.Transportation != nil && *p.Transportation != "" {
		if _, ok := models.TransportationChoices[*p.Transportation]; !ok {
			fe.Add("transportation", fmt.Sprintf(msgInvalidChoice, *p.Transportation))
		}
		pl.transportation = *p.Transportation
	}
	if p.Gender != nil && *p.Gender != "" {
		if _, ok := models.GenderChoices[*p.Gender]; !ok {
			fe.Add("gender", fmt.Sprintf(msgInvalidChoice, *p.Gender))
		}
		pl.gender = *p.Gender
	}

	if p.IDNumber != nil && *p.IDNumber != "" && *p.IDNumber != "0" {
		id := string(*p.IDNumber)
		switch {
		case strings.IndexFunc(id, func(r rune) bool { return r < '0' || r > '9' }) >= 0:
			fe.Add("id_number", msgDigitsOnly)
		case len(id) > s.opts.IDNumberMaxLength:
			fe.Add("id_number", fmt.Sprintf(msgMaxLength, s.opts.IDNumberMaxLength))
		}
		pl.idNumber = id
	}

	if len(p.Address) > 0 {
		pl.addresses = make([]models.Address, 0, len(p.Address))
		for i, in := range p.Address {
			prefix := fmt.Sprintf("address[%d].", i)
			street := strings.TrimSpace(in.Street)
			switch {
			case street == "":
				fe.Add(prefix+"street", accounts.MsgRequired)
			case utf8.RuneCountInString(street) > maxStreetLength:
				fe.Add(prefix+"street", fmt.Sprintf(msgMaxLength, maxStreetLength))
			}
			if in.City != "" {
				if _, ok := models.GovernorateChoices[in.City]; !ok {
					fe.Add(prefix+"city", fmt.Sprintf(msgInvalidChoice, in.City))
				}
			}
			country := strings.TrimSpace(in.Country)
			if country == "" {
				country = models.DefaultCountry
			}
			pl.addresses = append(pl.addresses, models.Address{
				Street:         street,
				BuildingNumber: in.BuildingNumber,
				City:           in.City,
				Country:        country,
				PostalCode:     in.PostalCode,
			})
		}
	}

	if len(p.IDImages) > 0 {
		pl.idImages = make([]models.IDImage, 0, len(p.IDImages))
		for i, in := range p.IDImages {
			if strings.TrimSpace(in.Image) == "" {
				fe.Add(fmt.Sprintf("id_images[%d].image", i), accounts.MsgRequired)
			}
			if utf8.RuneCountInString(in.Title) > maxTitleLength {
				fe.Add(fmt.Sprintf("id_images[%d].title", i), fmt.Sprintf(msgMaxLength, maxTitleLength))
			}
			pl.idImages = append(pl.idImages, models.IDImage{Title: in.Title, Image: in.Image})
		}
	}

	if p.ProfilePicture != nil {
		pl.picture = strings.TrimSpace(*p.ProfilePicture)
	}
	if p.AcceptTerms != nil {
		pl.acceptTerms = *p.AcceptTerms
	}
	if p.IsTasker != nil {
		pl.isTasker = *p.IsTasker
	}

	if err := fe.Err(); err != nil {
		return plan{}, err
	}
	return pl, nil
}

// upload stores new image payloads and rewrites the plan to their references.
// Payloads echoing an image the user already has keep that reference. It
// returns every reference written, including on failure.
func (s *Service) upload(ctx context.Context, userID int64, current models.Account, pl *plan) ([]string, error) {
	var written []string
	fe := errs.FieldErrors{}

	if pl.picture != "" {
		if ref, ok := s.existing(pl.picture, current.Profile.ProfilePicture); ok {
			pl.picture = ref
		} else {
			ref, err := s.blobs.Put(ctx, blob.CategoryProfile, userID, pl.picture)
			if err != nil {
				if !imageError(fe, "profile_picture", err) {
					return written, err
				}
			} else {
				written = append(written, ref)
				pl.picture = ref
			}
		}
	}

	for i := range pl.idImages {
		img := &pl.idImages[i]
		if ref, ok := s.existingIDImage(img.Image, current.IDImages); ok {
			img.Image = ref
			continue
		}
		ref, err := s.blobs.Put(ctx, blob.CategoryID, userID, img.Image)
		if err != nil {
			if !imageError(fe, fmt.Sprintf("id_images[%d].image", i), err) {
				return written, err
			}
			continue
		}
		written = append(written, ref)
		img.Image = ref
	}
	return written, fe.Err()
}

func (s *Service) existing(value, ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	if value == ref || value == s.opts.MediaURL+ref || strings.HasSuffix(value, s.opts.MediaURL+ref) {
		return ref, true
	}
	return "", false
}

func (s *Service) existingIDImage(value string, images []models.IDImage) (string, bool) {
	for _, img := range images {
		if ref, ok := s.existing(value, img.Image); ok {
			return ref, true
		}
	}
	return "", false
}

// discard removes blob references, logging failures.
func (s *Service) discard(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := s.blobs.Delete(ctx, ref); err != nil {
			s.log.Warn("delete blob", zap.String("ref", ref), zap.Error(err))
		}
	}
}

// replaced lists blob references held by before but no longer by after.
func replaced(before, after models.Account) []string {
	keep := map[string]bool{after.Profile.ProfilePicture: true}
	for _, img := range after.IDImages {
		keep[img.Image] = true
	}
	var out []string
	if ref := before.Profile.ProfilePicture; ref != "" && !keep[ref] {
		out = append(out, ref)
	}
	for _, img := range before.IDImages {
		if img.Image != "" && !keep[img.Image] {
			out = append(out, img.Image)
		}
	}
	return out
}

func imageError(fe errs.FieldErrors, field string, err error) bool {
	switch {
	case errors.Is(err, blob.ErrTooLarge), errors.Is(err, blob.ErrTooManyPixels):
		fe.Add(field, msgImageTooLarge)
	case errors.Is(err, blob.ErrMalformed), errors.Is(err, blob.ErrUnsupported):
		fe.Add(field, msgInvalidImage)
	default:
		return false
	}
	return true
}

func collect(fe errs.FieldErrors, err error) bool {
	var e *errs.Error
	if !errors.As(err, &e) || e.Kind != errs.KindValidation {
		return false
	}
	for field, msgs := range e.Fields {
		for _, m := range msgs {
			fe.Add(field, m)
		}
	}
	return true
}
