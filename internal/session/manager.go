package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired session token")

// Claims is the signed claim set; Subject carries the user id.
type Claims struct {
	Name               string `json:"name,omitempty"`
	Email              string `json:"email,omitempty"`
	Image              string `json:"image,omitempty"`
	Provider           string `json:"provider,omitempty"`
	IsOauth            bool   `json:"isOauth"`
	IsTwoFactorEnabled bool   `json:"isTwoFactorEnabled"`
	jwt.RegisteredClaims
}

// Session is the externally visible view of an authenticated principal.
type Session struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Image              string `json:"image,omitempty"`
	IsOauth            bool   `json:"isOauth"`
	IsTwoFactorEnabled bool   `json:"isTwoFactorEnabled"`
}

func SessionFromClaims(c *Claims) *Session {
	return &Session{
		ID:                 c.Subject,
		Name:               c.Name,
		Email:              c.Email,
		Image:              c.Image,
		IsOauth:            c.IsOauth,
		IsTwoFactorEnabled: c.IsTwoFactorEnabled,
	}
}

type Manager struct {
	pipeline *Pipeline
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(pipeline *Pipeline, secret string, ttl time.Duration) *Manager {
	return &Manager{pipeline: pipeline, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issued is a freshly signed session.
type Issued struct {
	Token     string
	ExpiresAt time.Time
	Session   *Session
}

// SignIn runs the OnSignIn stages and, if none objects, builds, enriches and
// signs a new session for ev.UserID.
func (m *Manager) SignIn(ctx context.Context, ev SignInEvent) (*Issued, error) {
	if err := m.pipeline.RunSignIn(ctx, ev); err != nil {
		return nil, err
	}
	claims := Claims{
		Provider: ev.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: ev.UserID,
		},
	}
	return m.issue(ctx, claims)
}

// Refresh re-enriches a still valid session token and signs it again with a
// new expiry, so profile changes reach the live session.
func (m *Manager) Refresh(ctx context.Context, token string) (*Issued, error) {
	claims, err := m.Parse(token)
	if err != nil {
		return nil, err
	}
	return m.issue(ctx, *claims)
}

func (m *Manager) issue(ctx context.Context, claims Claims) (*Issued, error) {
	claims, err := m.pipeline.RunClaimsRefresh(ctx, claims)
	if err != nil {
		return nil, err
	}
	now := m.now()
	exp := now.Add(m.ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Issued{Token: signed, ExpiresAt: exp, Session: SessionFromClaims(&claims)}, nil
}

// Parse verifies signature and expiry and returns the claim set.
func (m *Manager) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
