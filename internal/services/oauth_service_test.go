package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/internal/logging"
)

type fakeProvider struct {
	*httptest.Server
	profile   map[string]any
	emails    []map[string]any
	tokenCode int
}

func newFakeProvider(t *testing.T, profile map[string]any) *fakeProvider {
	t.Helper()
	p := &fakeProvider{profile: profile, tokenCode: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if p.tokenCode != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(p.tokenCode)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.profile)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.emails)
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func (p *fakeProvider) settings() ProviderSettings {
	return ProviderSettings{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/callback",
		AuthURL:      p.URL + "/authorize",
		TokenURL:     p.URL + "/token",
		UserInfoURL:  p.URL + "/user",
	}
}

func TestOAuth_AuthCodeURL(t *testing.T) {
	f := newFixture(t)
	svc := NewOAuthService(f.store, f.sessions, logging.Discard(),
		NewGoogleProvider(ProviderSettings{ClientID: "cid", ClientSecret: "s", RedirectURL: "http://localhost/cb"}),
		NewGitHubProvider(ProviderSettings{ClientID: "cid", ClientSecret: "s"}))

	assert.Equal(t, []string{ProviderGitHub, ProviderGoogle}, svc.Providers())

	raw, err := svc.AuthCodeURL(ProviderGoogle, "state-1")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "cid", u.Query().Get("client_id"))

	_, err = svc.AuthCodeURL("myspace", "state-1")
	requireKind(t, err, ErrUnknownProvider)
}

func TestOAuth_CallbackCreatesVerifiedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gh := newFakeProvider(t, map[string]any{"id": 42, "login": "octo", "email": "Octo@x.com", "avatar_url": "https://img/octo"})
	svc := NewOAuthService(f.store, f.sessions, logging.Discard(), NewGitHubProvider(gh.settings()))

	res, err := svc.Callback(ctx, ProviderGitHub, "code-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAuthenticated, res.Status)
	assert.True(t, res.Session.Session.IsOauth)
	assert.Equal(t, "octo", res.Session.Session.Name)

	u, err := f.store.Repos().Users.GetByEmail(ctx, "octo@x.com")
	require.NoError(t, err)
	assert.True(t, u.IsVerified())
	assert.False(t, u.HasPassword())
	acc, err := f.store.Repos().Accounts.GetByProvider(ctx, ProviderGitHub, "42")
	require.NoError(t, err)
	assert.Equal(t, u.ID, acc.UserID)

	res, err = svc.Callback(ctx, ProviderGitHub, "code-2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.Session.Session.ID, "second sign-in reuses the link")
}

func TestOAuth_GitHubPrivateEmailUsesPrimaryVerified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gh := newFakeProvider(t, map[string]any{"id": 7, "login": "octo", "email": nil})
	gh.emails = []map[string]any{
		{"email": "old@x.com", "primary": false, "verified": true},
		{"email": "unconfirmed@x.com", "primary": true, "verified": false},
		{"email": "Octo@Private.com", "primary": true, "verified": true},
	}
	svc := NewOAuthService(f.store, f.sessions, logging.Discard(), NewGitHubProvider(gh.settings()))

	res, err := svc.Callback(ctx, ProviderGitHub, "code")
	require.NoError(t, err)
	assert.Equal(t, "octo@private.com", res.Session.Session.Email)

	u, err := f.store.Repos().Users.GetByEmail(ctx, "octo@private.com")
	require.NoError(t, err)
	assert.Equal(t, res.Session.Session.ID, u.ID)
}

func TestOAuth_GitHubWithoutVerifiedEmailIsRejected(t *testing.T) {
	f := newFixture(t)
	gh := newFakeProvider(t, map[string]any{"id": 8, "login": "ghost", "email": nil})
	gh.emails = []map[string]any{{"email": "ghost@x.com", "primary": true, "verified": false}}
	svc := NewOAuthService(f.store, f.sessions, logging.Discard(), NewGitHubProvider(gh.settings()))

	_, err := svc.Callback(context.Background(), ProviderGitHub, "code")
	requireKind(t, err, ErrInvalidInput)
}

func TestOAuth_CallbackDoesNotLinkExistingEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "a@x.com", "secret1", userOpts{verified: true})
	g := newFakeProvider(t, map[string]any{"sub": "g-1", "email": "a@x.com", "name": "Ann"})
	svc := NewOAuthService(f.store, f.sessions, logging.Discard(), NewGoogleProvider(g.settings()))

	_, err := svc.Callback(ctx, ProviderGoogle, "code")
	requireKind(t, err, ErrAccountNotLinked)

	_, err = f.store.Repos().Accounts.GetByProvider(ctx, ProviderGoogle, "g-1")
	assert.Error(t, err)
}

func TestOAuth_CallbackRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := newFakeProvider(t, map[string]any{"sub": "g-1"})
	svc := NewOAuthService(f.store, f.sessions, logging.Discard(), NewGoogleProvider(g.settings()))

	_, err := svc.Callback(ctx, "myspace", "code")
	requireKind(t, err, ErrUnknownProvider)

	_, err = svc.Callback(ctx, ProviderGoogle, "")
	requireKind(t, err, ErrInvalidInput)

	_, err = svc.Callback(ctx, ProviderGoogle, "code")
	requireKind(t, err, ErrInvalidInput)

	g.tokenCode = http.StatusBadRequest
	_, err = svc.Callback(ctx, ProviderGoogle, "code")
	requireKind(t, err, ErrUnauthorized)

	n, err := f.store.Repos().Accounts.CountByUserID(ctx, "any")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOAuth_SignInGateAllowsProviderUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g := newFakeProvider(t, map[string]any{"sub": "g-2", "email": "new@x.com"})
	svc := NewOAuthService(f.store, f.sessions, logging.Discard(), NewGoogleProvider(g.settings()))

	res, err := svc.Callback(ctx, ProviderGoogle, "code")
	require.NoError(t, err)

	u := f.user(t, res.Session.Session.ID)
	u.IsTwoFactorEnabled = true
	require.NoError(t, f.store.Repos().Users.Update(ctx, u))

	_, err = svc.Callback(ctx, ProviderGoogle, "code")
	assert.NoError(t, err, "2FA only gates credential sign-ins")
}
