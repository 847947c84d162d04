// Package memory is an in-process storage.Store used by tests and by the
// server when no database is configured. Transactions are serialised by a
// single mutex and roll back by restoring a snapshot.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/taskkez-be/internal/models"
	"github.com/hongminglow/taskkez-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type txKey struct{}

type state struct {
	nextID    int64
	users     map[int64]models.User
	emails    map[int64]models.EmailAddress
	profiles  map[int64]models.Profile
	addresses map[int64][]models.Address
	idImages  map[int64][]models.IDImage
}

func (s state) clone() state {
	out := state{
		nextID:    s.nextID,
		users:     make(map[int64]models.User, len(s.users)),
		emails:    make(map[int64]models.EmailAddress, len(s.emails)),
		profiles:  make(map[int64]models.Profile, len(s.profiles)),
		addresses: make(map[int64][]models.Address, len(s.addresses)),
		idImages:  make(map[int64][]models.IDImage, len(s.idImages)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.emails {
		out.emails[k] = v
	}
	for k, v := range s.profiles {
		out.profiles[k] = v
	}
	for k, v := range s.addresses {
		out.addresses[k] = append([]models.Address(nil), v...)
	}
	for k, v := range s.idImages {
		out.idImages[k] = append([]models.IDImage(nil), v...)
	}
	return out
}

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu          sync.Mutex
	uniqueEmail bool
	data        state
}

// NewStore returns an empty store. uniqueEmail mirrors the unique index the
// Postgres schema puts on users.email.
func NewStore(uniqueEmail bool) *Store {
	return &Store{
		uniqueEmail: uniqueEmail,
		data: state{
			users:     map[int64]models.User{},
			emails:    map[int64]models.EmailAddress{},
			profiles:  map[int64]models.Profile{},
			addresses: map[int64][]models.Address{},
			idImages:  map[int64][]models.IDImage{},
		},
	}
}

// RunInTx holds the store lock for the whole of fn and restores the prior
// state if fn fails or panics.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snap
			panic(p)
		}
		if err != nil {
			s.data = snap
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, s))
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store mutex unless ctx already runs inside this store's transaction.
func (s *Store) lock(ctx context.Context) (func(), error) {
	if s.inTx(ctx) {
		return func() {}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return s.mu.Unlock, nil
}

func (s *Store) newID() int64 {
	s.data.nextID++
	return s.data.nextID
}

func fold(v string) string { return strings.ToLower(strings.TrimSpace(v)) }

// CreateUser inserts a user and its empty profile.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return models.User{}, err
	}
	defer unlock()

	if err := s.checkUserUnique(user, 0); err != nil {
		return models.User{}, err
	}
	user.ID = s.newID()
	user.DateJoined = time.Now().UTC()
	s.data.users[user.ID] = user
	now := time.Now().UTC()
	s.data.profiles[user.ID] = models.Profile{UserID: user.ID, Created: now, Modified: now}
	return user, nil
}

func (s *Store) checkUserUnique(user models.User, self int64) error {
	for id, u := range s.data.users {
		if id == self {
			continue
		}
		if fold(u.Username) == fold(user.Username) {
			return &storage.ConstraintError{Constraint: storage.ConstraintUsername}
		}
		if s.uniqueEmail && user.Email != "" && fold(u.Email) == fold(user.Email) {
			return &storage.ConstraintError{Constraint: storage.ConstraintUserEmail}
		}
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return models.User{}, err
	}
	defer unlock()

	u, ok := s.data.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findUser(ctx, func(u models.User) bool { return fold(u.Username) == fold(username) })
}

func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findUser(ctx, func(u models.User) bool { return u.Email != "" && fold(u.Email) == fold(email) })
}

func (s *Store) FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error) {
	if u, err := s.FindByUsername(ctx, identifier); err == nil {
		return u, nil
	}
	return s.FindByEmail(ctx, identifier)
}

func (s *Store) findUser(ctx context.Context, match func(models.User) bool) (models.User, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return models.User{}, err
	}
	defer unlock()

	var found *models.User
	for _, u := range s.data.users {
		if match(u) && (found == nil || u.ID < found.ID) {
			u := u
			found = &u
		}
	}
	if found == nil {
		return models.User{}, storage.ErrNotFound
	}
	return *found, nil
}

func (s *Store) UpdateUser(ctx context.Context, user models.User) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	cur, ok := s.data.users[user.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if err := s.checkUserUnique(user, user.ID); err != nil {
		return err
	}
	cur.Username = user.Username
	cur.Email = user.Email
	cur.FirstName = user.FirstName
	cur.LastName = user.LastName
	cur.IsActive = user.IsActive
	s.data.users[user.ID] = cur
	return nil
}

func (s *Store) SetPassword(ctx context.Context, userID int64, passwordHash string) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	u, ok := s.data.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.PasswordHash = passwordHash
	s.data.users[userID] = u
	return nil
}

func (s *Store) UsernameTaken(ctx context.Context, username string, exceptUserID int64) (bool, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	for id, u := range s.data.users {
		if id != exceptUserID && fold(u.Username) == fold(username) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) AddEmail(ctx context.Context, rec models.EmailAddress) (models.EmailAddress, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return models.EmailAddress{}, err
	}
	defer unlock()

	if _, ok := s.data.users[rec.UserID]; !ok {
		return models.EmailAddress{}, storage.ErrNotFound
	}
	for _, e := range s.data.emails {
		if e.UserID == rec.UserID && fold(e.Email) == fold(rec.Email) {
			return models.EmailAddress{}, &storage.ConstraintError{Constraint: storage.ConstraintUserEmailAddress}
		}
	}
	rec.ID = s.newID()
	s.data.emails[rec.ID] = rec
	return rec, nil
}

func (s *Store) LockEmails(ctx context.Context, userID int64) ([]models.EmailAddress, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []models.EmailAddress
	for _, e := range s.data.emails {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindEmail(ctx context.Context, userID int64, email string) (models.EmailAddress, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return models.EmailAddress{}, err
	}
	defer unlock()

	for _, e := range s.data.emails {
		if e.UserID == userID && fold(e.Email) == fold(email) {
			return e, nil
		}
	}
	return models.EmailAddress{}, storage.ErrNotFound
}

func (s *Store) FindUnverifiedEmail(ctx context.Context, email string) (models.EmailAddress, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return models.EmailAddress{}, err
	}
	defer unlock()

	var found *models.EmailAddress
	for _, e := range s.data.emails {
		if !e.Verified && fold(e.Email) == fold(email) && (found == nil || e.ID > found.ID) {
			e := e
			found = &e
		}
	}
	if found == nil {
		return models.EmailAddress{}, storage.ErrNotFound
	}
	return *found, nil
}

func (s *Store) EmailInUse(ctx context.Context, email string, exceptUserID int64) (bool, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	for id, u := range s.data.users {
		if id != exceptUserID && fold(u.Email) == fold(email) {
			return true, nil
		}
	}
	for _, e := range s.data.emails {
		if e.UserID != exceptUserID && fold(e.Email) == fold(email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkVerified(ctx context.Context, id int64) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	e, ok := s.data.emails[id]
	if !ok {
		return storage.ErrNotFound
	}
	e.Verified = true
	s.data.emails[id] = e
	return nil
}

func (s *Store) SetPrimary(ctx context.Context, userID, id int64) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	touched := false
	for k, e := range s.data.emails {
		if e.UserID != userID {
			continue
		}
		e.Primary = k == id
		s.data.emails[k] = e
		touched = true
	}
	if !touched {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEmails(ctx context.Context, userID int64, email string, exceptID int64) (int64, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var n int64
	for k, e := range s.data.emails {
		if e.UserID == userID && k != exceptID && fold(e.Email) == fold(email) {
			delete(s.data.emails, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) GetProfile(ctx context.Context, userID int64) (models.Profile, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return models.Profile{}, err
	}
	defer unlock()

	p, ok := s.data.profiles[userID]
	if !ok {
		return models.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p models.Profile) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	cur, ok := s.data.profiles[p.UserID]
	if !ok {
		return storage.ErrNotFound
	}
	if p.PhoneNumber != "" {
		for id, other := range s.data.profiles {
			if id != p.UserID && other.PhoneNumber == p.PhoneNumber {
				return &storage.ConstraintError{Constraint: storage.ConstraintPhone}
			}
		}
	}
	p.Created = cur.Created
	p.Modified = time.Now().UTC()
	s.data.profiles[p.UserID] = p
	return nil
}

func (s *Store) PhoneTaken(ctx context.Context, phone string, exceptUserID int64) (bool, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	for id, p := range s.data.profiles {
		if id != exceptUserID && p.PhoneNumber != "" && p.PhoneNumber == phone {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return append([]models.Address{}, s.data.addresses[userID]...), nil
}

func (s *Store) ReplaceAddresses(ctx context.Context, userID int64, addrs []models.Address) ([]models.Address, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]models.Address, 0, len(addrs))
	for _, a := range addrs {
		a.ID = s.newID()
		if a.Country == "" {
			a.Country = models.DefaultCountry
		}
		out = append(out, a)
	}
	s.data.addresses[userID] = out
	return append([]models.Address{}, out...), nil
}

func (s *Store) ListIDImages(ctx context.Context, userID int64) ([]models.IDImage, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return append([]models.IDImage{}, s.data.idImages[userID]...), nil
}

func (s *Store) ReplaceIDImages(ctx context.Context, userID int64, images []models.IDImage) ([]models.IDImage, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := make([]models.IDImage, 0, len(images))
	for _, img := range images {
		img.ID = s.newID()
		out = append(out, img)
	}
	s.data.idImages[userID] = out
	return append([]models.IDImage{}, out...), nil
}
