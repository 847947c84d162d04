package accounts

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"

	"github.com/hongminglow/taskkez-be/internal/auth"
	"github.com/hongminglow/taskkez-be/internal/errs"
)

const maxUsernameLength = 150

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// NormalizeEmail trims and lower-cases the domain part of a bare address.
func NormalizeEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || addr.Name != "" {
		return "", false
	}
	at := strings.LastIndex(raw, "@")
	return raw[:at] + strings.ToLower(raw[at:]), true
}

// NormalizePhone parses raw into E.164, assuming region when raw has no
// country prefix.
func NormalizePhone(raw, region string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// CheckUsername validates username and its availability to exceptUserID.
func (s *Service) CheckUsername(ctx context.Context, username string, exceptUserID int64) error {
	switch {
	case username == "":
		return errs.Field("username", MsgRequired)
	case utf8.RuneCountInString(username) > maxUsernameLength:
		return errs.Field("username", MsgUsernameTooLong)
	case !usernamePattern.MatchString(username):
		return errs.Field("username", MsgUsernameInvalid)
	}
	taken, err := s.store.UsernameTaken(ctx, username, exceptUserID)
	if err != nil {
		return err
	}
	if taken {
		return errs.Field("username", MsgUsernameTaken)
	}
	return nil
}

// CheckPhone normalises raw and checks it is not on another user's profile.
func (s *Service) CheckPhone(ctx context.Context, raw string, exceptUserID int64) (string, error) {
	phone, ok := NormalizePhone(raw, s.policy.PhoneRegion)
	if !ok {
		return "", errs.Field("phone_number", MsgPhoneInvalid)
	}
	taken, err := s.store.PhoneTaken(ctx, phone, exceptUserID)
	if err != nil {
		return "", err
	}
	if taken {
		return "", errs.Field("phone_number", MsgPhoneTaken)
	}
	return phone, nil
}

// checkNewPassword collects mismatch and strength problems for a password pair.
// Mismatches are reported under mismatchField.
func checkNewPassword(fe errs.FieldErrors, field1, field2, mismatchField, p1, p2 string) {
	if p1 == "" {
		fe.Add(field1, MsgRequired)
	}
	if p2 == "" {
		fe.Add(field2, MsgRequired)
	}
	if p1 == "" || p2 == "" {
		return
	}
	if p1 != p2 {
		fe.Add(mismatchField, MsgPasswordMismatch)
		return
	}
	for _, problem := range auth.ValidatePassword(p1) {
		fe.Add(field2, problem)
	}
}

// mergeFieldErrors copies the fields of a validation error into fe and reports
// whether err was one.
func mergeFieldErrors(fe errs.FieldErrors, err error) bool {
	e, ok := err.(*errs.Error)
	if !ok || e.Kind != errs.KindValidation {
		return false
	}
	for field, msgs := range e.Fields {
		for _, m := range msgs {
			fe.Add(field, m)
		}
	}
	return true
}
