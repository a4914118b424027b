package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"authflow/internal/logging"
	"authflow/internal/models"
	"authflow/internal/repositories"
	"authflow/internal/session"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// ProviderProfile is what a provider tells us about the signed-in account.
type ProviderProfile struct {
	ID    string
	Email string
	Name  string
	Image string
}

// ProviderSettings configures one OAuth provider. Empty URLs fall back to the
// provider's public endpoints.
type ProviderSettings struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

func (s ProviderSettings) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

type OAuthProvider struct {
	name        string
	cfg         *oauth2.Config
	userInfoURL string
	// emailsURL lists the account's addresses; consulted when the profile
	// carries no email.
	emailsURL string
	decode    func(r io.Reader) (ProviderProfile, error)
}

func newProvider(name string, s ProviderSettings, ep oauth2.Endpoint, userInfoURL string, scopes []string) *OAuthProvider {
	if s.AuthURL != "" {
		ep.AuthURL = s.AuthURL
	}
	if s.TokenURL != "" {
		ep.TokenURL = s.TokenURL
	}
	if s.UserInfoURL != "" {
		userInfoURL = s.UserInfoURL
	}
	if len(s.Scopes) > 0 {
		scopes = s.Scopes
	}
	return &OAuthProvider{
		name: name,
		cfg: &oauth2.Config{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			RedirectURL:  s.RedirectURL,
			Scopes:       scopes,
			Endpoint:     ep,
		},
		userInfoURL: userInfoURL,
	}
}

func NewGoogleProvider(s ProviderSettings) *OAuthProvider {
	p := newProvider(ProviderGoogle, s, endpoints.Google, "https://openidconnect.googleapis.com/v1/userinfo", []string{"openid", "email", "profile"})
	p.decode = func(r io.Reader) (ProviderProfile, error) {
		var payload struct {
			Sub     string `json:"sub"`
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := json.NewDecoder(r).Decode(&payload); err != nil {
			return ProviderProfile{}, err
		}
		return ProviderProfile{ID: payload.Sub, Email: payload.Email, Name: payload.Name, Image: payload.Picture}, nil
	}
	return p
}

func NewGitHubProvider(s ProviderSettings) *OAuthProvider {
	p := newProvider(ProviderGitHub, s, endpoints.GitHub, "https://api.github.com/user", []string{"read:user", "user:email"})
	p.decode = func(r io.Reader) (ProviderProfile, error) {
		var payload struct {
			ID        int64  `json:"id"`
			Login     string `json:"login"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := json.NewDecoder(r).Decode(&payload); err != nil {
			return ProviderProfile{}, err
		}
		name := payload.Name
		if name == "" {
			name = payload.Login
		}
		return ProviderProfile{ID: strconv.FormatInt(payload.ID, 10), Email: payload.Email, Name: name, Image: payload.AvatarURL}, nil
	}
	// private addresses are left out of /user
	p.emailsURL = strings.TrimSuffix(p.userInfoURL, "/") + "/emails"
	return p
}

func (p *OAuthProvider) Name() string { return p.name }

func (p *OAuthProvider) fetchProfile(ctx context.Context, tok *oauth2.Token) (ProviderProfile, error) {
	client := p.cfg.Client(ctx, tok)

	var profile ProviderProfile
	err := getJSON(ctx, client, p.userInfoURL, func(r io.Reader) error {
		var err error
		profile, err = p.decode(r)
		return err
	})
	if err != nil {
		return ProviderProfile{}, fmt.Errorf("profile: %w", err)
	}
	if profile.ID == "" {
		return ProviderProfile{}, errors.New("missing provider user id")
	}
	if profile.Email == "" && p.emailsURL != "" {
		email, err := primaryEmail(ctx, client, p.emailsURL)
		if err != nil {
			return ProviderProfile{}, fmt.Errorf("emails: %w", err)
		}
		profile.Email = email
	}
	return profile, nil
}

// primaryEmail returns the primary verified address, or "" when the account
// has none.
func primaryEmail(ctx context.Context, client *http.Client, url string) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	err := getJSON(ctx, client, url, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&emails)
	})
	if err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

func getJSON(ctx context.Context, client *http.Client, url string, decode func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if err := decode(resp.Body); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type OAuthService interface {
	Providers() []string
	AuthCodeURL(provider, state string) (string, error)
	Callback(ctx context.Context, provider, code string) (*SignInResult, error)
}

type oauthService struct {
	store     repositories.Store
	sessions  *session.Manager
	providers map[string]*OAuthProvider
	log       logging.Logger
	now       func() time.Time
}

func NewOAuthService(store repositories.Store, sessions *session.Manager, log logging.Logger, providers ...*OAuthProvider) OAuthService {
	m := make(map[string]*OAuthProvider, len(providers))
	for _, p := range providers {
		m[p.name] = p
	}
	return &oauthService{
		store:     store,
		sessions:  sessions,
		providers: m,
		log:       log.With("component", "oauth"),
		now:       time.Now,
	}
}

func (s *oauthService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *oauthService) AuthCodeURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}
	return p.cfg.AuthCodeURL(state), nil
}

// Callback finishes a provider sign-in. Known provider accounts sign in as
// their linked user. An unknown account becomes a new, already verified user
// unless its email belongs to an existing user: accounts are never linked
// implicitly.
func (s *oauthService) Callback(ctx context.Context, provider, code string) (*SignInResult, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if code == "" {
		return nil, invalidInput("Missing authorization code.")
	}

	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil &&
			(rerr.Response.StatusCode == http.StatusBadRequest || rerr.Response.StatusCode == http.StatusUnauthorized) {
			return nil, ErrUnauthorized.wrap(err)
		}
		return nil, internal(fmt.Errorf("exchange: %w", err))
	}
	profile, err := p.fetchProfile(ctx, tok)
	if err != nil {
		return nil, internal(err)
	}
	if profile.Email == "" {
		return nil, invalidInput("Your provider account has no email address.")
	}

	userID, err := s.resolveUser(ctx, p.name, profile)
	if err != nil {
		return nil, err
	}

	issued, err := s.sessions.SignIn(ctx, session.SignInEvent{Provider: p.name, UserID: userID})
	if err != nil {
		return nil, internal(err)
	}
	s.log.Info(ctx, "signed in", "user_id", userID, "provider", p.name)
	return &SignInResult{Status: StatusAuthenticated, Session: issued}, nil
}

func (s *oauthService) resolveUser(ctx context.Context, provider string, profile ProviderProfile) (string, error) {
	var userID string
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		acc, err := r.Accounts.GetByProvider(ctx, provider, profile.ID)
		if err == nil {
			userID = acc.UserID
			return nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		if _, err := r.Users.GetByEmail(ctx, email); err == nil {
			return ErrAccountNotLinked
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		verified := s.now()
		user := &models.User{
			ID:            uuid.NewString(),
			Email:         email,
			EmailVerified: &verified,
		}
		if profile.Name != "" {
			user.Name = &profile.Name
		}
		if profile.Image != "" {
			user.Image = &profile.Image
		}
		if err := r.Users.Create(ctx, user); err != nil {
			return err
		}
		if err := r.Accounts.Create(ctx, &models.LinkedAccount{
			ID:                uuid.NewString(),
			UserID:            user.ID,
			Provider:          provider,
			ProviderAccountID: profile.ID,
		}); err != nil {
			return err
		}
		userID = user.ID
		s.log.Info(ctx, "user created from provider account", "user_id", user.ID, "provider", provider)
		return nil
	})
	switch {
	case errors.Is(err, ErrAccountNotLinked):
		return "", ErrAccountNotLinked
	case errors.Is(err, repositories.ErrDuplicate):
		// a concurrent callback created the same user or link
		return "", ErrAccountNotLinked
	case err != nil:
		return "", internal(err)
	}
	return userID, nil
}
