package profiles

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/taskkez-be/internal/accounts"
	"github.com/hongminglow/taskkez-be/internal/auth"
	"github.com/hongminglow/taskkez-be/internal/blob"
	"github.com/hongminglow/taskkez-be/internal/errs"
	"github.com/hongminglow/taskkez-be/internal/ledger"
	"github.com/hongminglow/taskkez-be/internal/models"
	"github.com/hongminglow/taskkez-be/internal/notify"
	"github.com/hongminglow/taskkez-be/internal/storage/memory"
	"github.com/hongminglow/taskkez-be/internal/verification"
)

type fixture struct {
	svc       *Service
	accounts  *accounts.Service
	store     *memory.Store
	notes     *notify.Recorder
	mediaRoot string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore(true)
	l := ledger.NewMemoryLedger()
	notes := &notify.Recorder{}
	acc := accounts.NewService(accounts.Deps{
		Store:    store,
		Hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		Sessions: auth.NewTokenManager("secret", "taskkez", time.Hour),
		Tokens:   verification.NewService("secret", "taskkez", time.Hour, time.Hour, l),
		Ledger:   l,
		Notifier: notes,
	}, accounts.Policy{UniqueEmail: true})

	root := t.TempDir()
	blobs, err := blob.NewStore(root, 1<<20, 0, zap.NewNop())
	require.NoError(t, err)

	svc := NewService(store, acc, blobs, nil, zap.NewNop(), Options{IDNumberMaxLength: 14, MediaURL: "/media/"})
	return &fixture{svc: svc, accounts: acc, store: store, notes: notes, mediaRoot: root}
}

func (f *fixture) register(t *testing.T, username, email, phone string) models.User {
	t.Helper()
	reg, err := f.accounts.Register(context.Background(), accounts.RegisterInput{
		Username: username, Email: email, Password1: "s3cure-pass", Password2: "s3cure-pass",
		FirstName: "First", LastName: "Last", PhoneNumber: phone, AcceptTerms: true,
	})
	require.NoError(t, err)
	return reg.User
}

func decodePatch(t *testing.T, raw string) Patch {
	t.Helper()
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func pngBase64(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func fields(t *testing.T, err error) map[string][]string {
	t.Helper()
	var e *errs.Error
	require.True(t, errors.As(err, &e), "got %v", err)
	require.Equal(t, errs.KindValidation, e.Kind)
	return e.Fields
}

func TestUpdateAboutOnlyLeavesOtherFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice", "alice@x.com", "+201001234567")

	_, err := f.svc.Update(ctx, user.ID, decodePatch(t, `{"transportation":"C","gender":"F","id_number":"29001011234567"}`))
	require.NoError(t, err)
	before, err := f.svc.Get(ctx, user.ID)
	require.NoError(t, err)

	acct, err := f.svc.Update(ctx, user.ID, decodePatch(t, `{"about":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", acct.Profile.About)

	want := before.Profile
	want.About = "hi"
	want.Modified = acct.Profile.Modified
	assert.Equal(t, want, acct.Profile)
	assert.Equal(t, before.User, acct.User)
}

func TestBecomeTaskerKeepsPhone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice", "alice@x.com", "+201001234567")

	acct, err := f.svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, acct.Profile.IsTasker)

	acct, err = f.svc.Update(ctx, user.ID, decodePatch(t, `{"is_tasker":true}`))
	require.NoError(t, err)
	assert.True(t, acct.Profile.IsTasker)
	assert.Equal(t, "+201001234567", acct.Profile.PhoneNumber)
}

func TestFalsyValuesAreIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice", "alice@x.com", "+201001234567")

	_, err := f.svc.Update(ctx, user.ID, decodePatch(t, `{"about":"hello","is_tasker":true}`))
	require.NoError(t, err)

	acct, err := f.svc.Update(ctx, user.ID, decodePatch(t, `{"about":"","is_tasker":false,"phone_number":"","address":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", acct.Profile.About)
	assert.True(t, acct.Profile.IsTasker)
	assert.Equal(t, "+201001234567", acct.Profile.PhoneNumber)
}

func TestSameEmailHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice", "alice@x.com", "+201001234567")
	sent := len(f.notes.Messages())

	_, err := f.svc.Update(ctx, user.ID, decodePatch(t, `{"email":"ALICE@x.com","first_name":"Alicia"}`))
	require.NoError(t, err)

	recs, err := f.store.LockEmails(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Len(t, f.notes.Messages(), sent)
}

func TestEmailChangeStartsVerification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice", "alice@x.com", "+201001234567")

	acct, err := f.svc.Update(ctx, user.ID, decodePatch(t, `{"email":"alice@new.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", acct.User.Email)

	msg, ok := f.notes.Last(notify.KindEmailConfirmation)
	require.True(t, ok)
	assert.Equal(t, "alice@new.com", msg.To)

	_, err = f.svc.Update(ctx, user.ID, decodePatch(t, `{"email":"alice@new.com","first_name":"Changed"}`))
	assert.ErrorIs(t, err, errs.ErrConflict)

	got, err := f.store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", got.FirstName, "a failed update writes nothing")

	require.NoError(t, f.accounts.ConfirmEmail(ctx, msg.Key))
	got, err = f.store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@new.com", got.Email)
}

func TestUpdateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "bob", "bob@x.com", "+201112345678")
	user := f.register(t, "alice", "alice@x.com", "+201001234567")

	tests := []struct {
		name  string
		patch string
		field string
	}{
		{"phone taken", `{"phone_number":"+201112345678"}`, "phone_number"},
		{"phone invalid", `{"phone_number":"123"}`, "phone_number"},
		{"id number letters", `{"id_number":"12ab"}`, "id_number"},
		{"id number negative", `{"id_number":-12}`, "id_number"},
		{"id number fraction", `{"id_number":1.5}`, "id_number"},
		{"id number too long", `{"id_number":123456789012345}`, "id_number"},
		{"transportation", `{"transportation":"X"}`, "transportation"},
		{"gender", `{"gender":"Q"}`, "gender"},
		{"city", `{"address":[{"street":"Main","city":"NYC"}]}`, "address[0].city"},
		{"street", `{"address":[{"street":" "}]}`, "address[0].street"},
		{"future birth date", `{"birth_date":"2999-01-01"}`, "birth_date"},
		{"username taken", `{"username":"BOB"}`, "username"},
		{"blank first name", `{"first_name":""}`, "first_name"},
		{"bad image", `{"profile_picture":"bm90IGFuIGltYWdl"}`, "profile_picture"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, user.ID, decodePatch(t, tc.patch))
			require.Error(t, err)
			assert.NotEmpty(t, fields(t, err)[tc.field])
		})
	}
}

func TestAddressesReplaceCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice", "alice@x.com", "+201001234567")

	_, err := f.svc.Update(ctx, user.ID, decodePatch(t, `{"address":[{"street":"Tahrir","city":"C"},{"street":"Corniche","city":"ALX","postal_code":21500}]}`))
	require.NoError(t, err)

	acct, err := f.svc.Update(ctx, user.ID, decodePatch(t, `{"address":[{"street":"Nile St","city":"GZ","building_number":12}]}`))
	require.NoError(t, err)
	require.Len(t, acct.Addresses, 1)
	assert.Equal(t, "Nile St", acct.Addresses[0].Street)
	assert.Equal(t, models.DefaultCountry, acct.Addresses[0].Country)
	require.NotNil(t, acct.Addresses[0].BuildingNumber)
	assert.Equal(t, 12, *acct.Addresses[0].BuildingNumber)
}

func TestImagesStoredAndReplaced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice", "alice@x.com", "+201001234567")
	payload := pngBase64(t)

	acct, err := f.svc.Update(ctx, user.ID, Patch{
		ProfilePicture: &payload,
		IDImages:       []IDImageInput{{Title: "front", Image: "data:image/png;base64," + payload}},
	})
	require.NoError(t, err)
	first := acct.Profile.ProfilePicture
	require.NotEmpty(t, first)
	require.Len(t, acct.IDImages, 1)
	idRef := acct.IDImages[0].Image
	assert.FileExists(t, filepath.Join(f.mediaRoot, filepath.FromSlash(first)))
	assert.FileExists(t, filepath.Join(f.mediaRoot, filepath.FromSlash(idRef)))

	echo := "/media/" + idRef
	acct, err = f.svc.Update(ctx, user.ID, Patch{
		ProfilePicture: &payload,
		IDImages:       []IDImageInput{{Title: "front", Image: echo}, {Title: "back", Image: payload}},
	})
	require.NoError(t, err)
	require.Len(t, acct.IDImages, 2)
	assert.Equal(t, idRef, acct.IDImages[0].Image)
	assert.NotEqual(t, first, acct.Profile.ProfilePicture)

	_, err = os.Stat(filepath.Join(f.mediaRoot, filepath.FromSlash(first)))
	assert.True(t, os.IsNotExist(err), "replaced picture is removed")
}

func TestUsernameChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice", "alice@x.com", "+201001234567")

	acct, err := f.svc.Update(ctx, user.ID, decodePatch(t, `{"username":"alice_2","birth_date":"1990-05-01"}`))
	require.NoError(t, err)
	assert.Equal(t, "alice_2", acct.User.Username)
	require.NotNil(t, acct.Profile.BirthDate)
	assert.Equal(t, "1990-05-01", acct.Profile.BirthDate.Format(dateLayout))
}

func TestDateDecoding(t *testing.T) {
	var p Patch
	assert.Error(t, json.Unmarshal([]byte(`{"birth_date":"01/05/1990"}`), &p))
	require.NoError(t, json.Unmarshal([]byte(`{"birth_date":null}`), &p))
	assert.Nil(t, p.BirthDate)
}

func TestIDNumberDecoding(t *testing.T) {
	tests := []struct {
		raw  string
		want IDNumber
	}{
		{`{"id_number":"29001011234567"}`, "29001011234567"},
		{`{"id_number":29001011234567}`, "29001011234567"},
		{`{"id_number":" 12ab "}`, "12ab"},
		{`{"id_number":-12}`, "-12"},
	}
	for _, tc := range tests {
		var p Patch
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &p), tc.raw)
		require.NotNil(t, p.IDNumber, tc.raw)
		assert.Equal(t, tc.want, *p.IDNumber)
	}

	var p Patch
	assert.Error(t, json.Unmarshal([]byte(`{"id_number":true}`), &p))
	require.NoError(t, json.Unmarshal([]byte(`{"id_number":null}`), &p))
	assert.Nil(t, p.IDNumber)
}
