package repositories

import (
	"context"
	"sync"
	"time"

	"authflow/internal/models"
)

// memoryStore keeps everything in process memory. Transactions are
// serialized: WithTx works on a copy that replaces the live data only when fn
// succeeds.
type memoryStore struct {
	mu   sync.Mutex
	data *memData
	now  func() time.Time
}

type memData struct {
	users         map[string]models.User
	accounts      map[string]models.LinkedAccount
	tokens        map[models.TokenKind]map[string]models.Token // keyed by email
	confirmations map[string]models.TwoFactorConfirmation      // keyed by user id
}

func newMemData() *memData {
	return &memData{
		users:    map[string]models.User{},
		accounts: map[string]models.LinkedAccount{},
		tokens: map[models.TokenKind]map[string]models.Token{
			models.TokenVerification:  {},
			models.TokenPasswordReset: {},
			models.TokenTwoFactor:     {},
		},
		confirmations: map[string]models.TwoFactorConfirmation{},
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for kind, byEmail := range d.tokens {
		for k, v := range byEmail {
			c.tokens[kind][k] = v
		}
	}
	for k, v := range d.confirmations {
		c.confirmations[k] = v
	}
	return c
}

// NewMemoryStore returns a Store without persistence, used for local runs
// without a database and in tests.
func NewMemoryStore() Store {
	return &memoryStore{data: newMemData(), now: time.Now}
}

func (s *memoryStore) Repos() *Repositories {
	return s.bind(func() (*memData, func()) {
		s.mu.Lock()
		return s.data, s.mu.Unlock
	})
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	repos := s.bind(func() (*memData, func()) { return work, func() {} })
	if err := fn(ctx, repos); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *memoryStore) bind(acquire func() (*memData, func())) *Repositories {
	return &Repositories{
		Users:               &memUsers{acquire: acquire, now: s.now},
		Accounts:            &memAccounts{acquire: acquire, now: s.now},
		VerificationTokens:  &memTokens{acquire: acquire, now: s.now, kind: models.TokenVerification},
		PasswordResetTokens: &memTokens{acquire: acquire, now: s.now, kind: models.TokenPasswordReset},
		TwoFactorTokens:     &memTokens{acquire: acquire, now: s.now, kind: models.TokenTwoFactor},
		Confirmations:       &memConfirmations{acquire: acquire, now: s.now},
	}
}

type memUsers struct {
	acquire func() (*memData, func())
	now     func() time.Time
}

func (r *memUsers) Create(ctx context.Context, user *models.User) error {
	d, release := r.acquire()
	defer release()
	if _, ok := d.users[user.ID]; ok {
		return ErrDuplicate
	}
	for _, u := range d.users {
		if u.Email == user.Email {
			return ErrDuplicate
		}
	}
	now := r.now()
	user.CreatedAt, user.UpdatedAt = now, now
	d.users[user.ID] = *user
	return nil
}

func (r *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	d, release := r.acquire()
	defer release()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	d, release := r.acquire()
	defer release()
	for _, u := range d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memUsers) Update(ctx context.Context, user *models.User) error {
	d, release := r.acquire()
	defer release()
	if _, ok := d.users[user.ID]; !ok {
		return ErrNotFound
	}
	if emailTakenByOther(d, user.ID, user.Email) {
		return ErrDuplicate
	}
	user.UpdatedAt = r.now()
	d.users[user.ID] = *user
	return nil
}

func (r *memUsers) MarkEmailVerified(ctx context.Context, id, email string, at time.Time) error {
	d, release := r.acquire()
	defer release()
	u, ok := d.users[id]
	if !ok {
		return ErrNotFound
	}
	if emailTakenByOther(d, id, email) {
		return ErrDuplicate
	}
	u.Email = email
	u.EmailVerified = &at
	u.UpdatedAt = r.now()
	d.users[id] = u
	return nil
}

func (r *memUsers) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	d, release := r.acquire()
	defer release()
	u, ok := d.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = &passwordHash
	u.UpdatedAt = r.now()
	d.users[id] = u
	return nil
}

func emailTakenByOther(d *memData, id, email string) bool {
	for _, u := range d.users {
		if u.ID != id && u.Email == email {
			return true
		}
	}
	return false
}

type memAccounts struct {
	acquire func() (*memData, func())
	now     func() time.Time
}

func (r *memAccounts) Create(ctx context.Context, a *models.LinkedAccount) error {
	d, release := r.acquire()
	defer release()
	for _, existing := range d.accounts {
		if existing.Provider == a.Provider && existing.ProviderAccountID == a.ProviderAccountID {
			return ErrDuplicate
		}
	}
	a.CreatedAt = r.now()
	d.accounts[a.ID] = *a
	return nil
}

func (r *memAccounts) GetByProvider(ctx context.Context, provider, providerAccountID string) (*models.LinkedAccount, error) {
	d, release := r.acquire()
	defer release()
	for _, a := range d.accounts {
		if a.Provider == provider && a.ProviderAccountID == providerAccountID {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memAccounts) CountByUserID(ctx context.Context, userID string) (int, error) {
	d, release := r.acquire()
	defer release()
	n := 0
	for _, a := range d.accounts {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

type memTokens struct {
	acquire func() (*memData, func())
	now     func() time.Time
	kind    models.TokenKind
}

func (r *memTokens) Upsert(ctx context.Context, t *models.Token) error {
	d, release := r.acquire()
	defer release()
	t.Kind = r.kind
	t.CreatedAt = r.now()
	stored := *t
	stored.Value = ""
	d.tokens[r.kind][t.Email] = stored
	return nil
}

func (r *memTokens) GetByHash(ctx context.Context, tokenHash string) (*models.Token, error) {
	d, release := r.acquire()
	defer release()
	for _, t := range d.tokens[r.kind] {
		if t.TokenHash == tokenHash {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memTokens) GetByEmail(ctx context.Context, email string) (*models.Token, error) {
	d, release := r.acquire()
	defer release()
	t, ok := d.tokens[r.kind][email]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *memTokens) Delete(ctx context.Context, id string) error {
	d, release := r.acquire()
	defer release()
	for email, t := range d.tokens[r.kind] {
		if t.ID == id {
			delete(d.tokens[r.kind], email)
			return nil
		}
	}
	return ErrNotFound
}

type memConfirmations struct {
	acquire func() (*memData, func())
	now     func() time.Time
}

func (r *memConfirmations) Replace(ctx context.Context, c *models.TwoFactorConfirmation) error {
	d, release := r.acquire()
	defer release()
	c.CreatedAt = r.now()
	d.confirmations[c.UserID] = *c
	return nil
}

func (r *memConfirmations) GetByUserID(ctx context.Context, userID string) (*models.TwoFactorConfirmation, error) {
	d, release := r.acquire()
	defer release()
	c, ok := d.confirmations[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r *memConfirmations) DeleteByUserID(ctx context.Context, userID string) error {
	d, release := r.acquire()
	defer release()
	if _, ok := d.confirmations[userID]; !ok {
		return ErrNotFound
	}
	delete(d.confirmations, userID)
	return nil
}
