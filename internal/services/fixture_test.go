package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"authflow/internal/logging"
	"authflow/internal/models"
	"authflow/internal/repositories"
	"authflow/internal/session"
	"authflow/internal/utils"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) last(t *testing.T, kind NotificationKind) Notification {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Kind == kind {
			return f.sent[i]
		}
	}
	t.Fatalf("no %s notification sent", kind)
	return Notification{}
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store    repositories.Store
	clock    *testClock
	notifier *fakeNotifier
	hasher   PasswordHasher
	tokens   *TokenService
	verifier *CredentialVerifier
	gate     *SignInGate
	enricher *ClaimsEnricher
	sessions *session.Manager

	signin   SignInService
	register RegistrationService
	verify   VerificationService
	reset    PasswordResetService
	settings SettingsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.Discard()
	f := &fixture{
		store:    repositories.NewMemoryStore(),
		clock:    &testClock{t: time.Now()},
		notifier: &fakeNotifier{},
		hasher:   NewBcryptHasher(bcrypt.MinCost),
	}
	f.tokens = NewTokenService(f.store, utils.NewTokenHasher("pepper"), TokenConfig{CodeDigits: 6}, log)
	f.tokens.now = f.clock.Now
	f.verifier = NewCredentialVerifier(f.store, f.hasher)
	f.gate = NewSignInGate(f.store, 5*time.Minute, log)
	f.gate.now = f.clock.Now
	f.enricher = NewClaimsEnricher(f.store, log)
	f.sessions = session.NewManager(session.NewPipeline(f.gate.Stage(), f.enricher.Stage()), "test-secret", time.Hour)

	f.signin = NewSignInService(f.store, f.verifier, f.tokens, f.notifier, f.sessions, log)
	f.register = NewRegistrationService(f.store, f.hasher, f.tokens, f.notifier, log)
	verify := NewVerificationService(f.store, f.tokens, log)
	verify.(*verificationService).now = f.clock.Now
	f.verify = verify
	f.reset = NewPasswordResetService(f.store, f.hasher, f.tokens, f.notifier, log)
	f.settings = NewSettingsService(f.store, f.verifier, f.hasher, f.tokens, f.notifier, log)
	return f
}

type userOpts struct {
	verified  bool
	twoFactor bool
	noPass    bool
}

func (f *fixture) seedUser(t *testing.T, email, password string, o userOpts) *models.User {
	t.Helper()
	name := "Test User"
	u := &models.User{ID: uuid.NewString(), Name: &name, Email: email, IsTwoFactorEnabled: o.twoFactor}
	if !o.noPass {
		hash, err := f.hasher.Hash(password)
		require.NoError(t, err)
		u.PasswordHash = &hash
	}
	if o.verified {
		at := f.clock.Now()
		u.EmailVerified = &at
	}
	require.NoError(t, f.store.Repos().Users.Create(context.Background(), u))
	return u
}

func (f *fixture) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.store.Repos().Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func requireKind(t *testing.T, err error, want *Error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, want), "want %s, got %v", want.Code, err)
	e, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, want.Kind, e.Kind)
}
