package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nameStage(name string) Stage {
	return Stage{
		Name: "name",
		OnClaimsRefresh: func(ctx context.Context, c Claims) (Claims, error) {
			c.Name = name
			c.Email = c.Subject + "@x.com"
			return c, nil
		},
	}
}

func TestPipeline_RunSignInStopsAtFirstDenial(t *testing.T) {
	var ran []string
	p := NewPipeline(
		Stage{Name: "first", OnSignIn: func(ctx context.Context, ev SignInEvent) error {
			ran = append(ran, "first")
			return nil
		}},
		Stage{Name: "gate", OnSignIn: func(ctx context.Context, ev SignInEvent) error {
			ran = append(ran, "gate")
			return ErrSignInDenied
		}},
		Stage{Name: "never", OnSignIn: func(ctx context.Context, ev SignInEvent) error {
			ran = append(ran, "never")
			return nil
		}},
	)

	err := p.RunSignIn(context.Background(), SignInEvent{Provider: ProviderCredentials, UserID: "u1"})
	require.ErrorIs(t, err, ErrSignInDenied)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "gate", se.Stage)
	assert.Equal(t, []string{"first", "gate"}, ran)
}

func TestPipeline_RunClaimsRefreshInOrder(t *testing.T) {
	p := NewPipeline(
		Stage{Name: "a", OnClaimsRefresh: func(ctx context.Context, c Claims) (Claims, error) {
			c.Name = "a"
			return c, nil
		}},
		Stage{Name: "signin-only", OnSignIn: func(ctx context.Context, ev SignInEvent) error { return nil }},
		Stage{Name: "b", OnClaimsRefresh: func(ctx context.Context, c Claims) (Claims, error) {
			c.Name += "b"
			return c, nil
		}},
	)
	assert.Equal(t, []string{"a", "signin-only", "b"}, p.Stages())

	out, err := p.RunClaimsRefresh(context.Background(), Claims{})
	require.NoError(t, err)
	assert.Equal(t, "ab", out.Name)
}

func TestPipeline_ClaimsErrorKeepsInput(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline(Stage{Name: "bad", OnClaimsRefresh: func(ctx context.Context, c Claims) (Claims, error) {
		return Claims{Name: "garbage"}, boom
	}})

	out, err := p.RunClaimsRefresh(context.Background(), Claims{Name: "orig"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "orig", out.Name)
}

func TestManager_SignInAndParse(t *testing.T) {
	m := NewManager(NewPipeline(nameStage("Ann")), "secret", time.Hour)

	issued, err := m.SignIn(context.Background(), SignInEvent{Provider: ProviderCredentials, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", issued.Session.ID)
	assert.Equal(t, "Ann", issued.Session.Name)
	assert.Equal(t, "u1@x.com", issued.Session.Email)

	claims, err := m.Parse(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, ProviderCredentials, claims.Provider)
	assert.WithinDuration(t, issued.ExpiresAt, claims.ExpiresAt.Time, time.Second)
}

func TestManager_SignInDenied(t *testing.T) {
	m := NewManager(NewPipeline(Stage{Name: "gate", OnSignIn: func(ctx context.Context, ev SignInEvent) error {
		return ErrSignInDenied
	}}), "secret", time.Hour)

	_, err := m.SignIn(context.Background(), SignInEvent{Provider: ProviderCredentials, UserID: "u1"})
	require.ErrorIs(t, err, ErrSignInDenied)
}

func TestManager_RefreshReenriches(t *testing.T) {
	name := "Ann"
	p := NewPipeline(Stage{Name: "name", OnClaimsRefresh: func(ctx context.Context, c Claims) (Claims, error) {
		c.Name = name
		return c, nil
	}})
	m := NewManager(p, "secret", time.Hour)

	issued, err := m.SignIn(context.Background(), SignInEvent{Provider: "github", UserID: "u1"})
	require.NoError(t, err)

	name = "Bea"
	refreshed, err := m.Refresh(context.Background(), issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "Bea", refreshed.Session.Name)

	claims, err := m.Parse(refreshed.Token)
	require.NoError(t, err)
	assert.Equal(t, "github", claims.Provider)
}

func TestManager_ParseRejects(t *testing.T) {
	m := NewManager(NewPipeline(), "secret", time.Hour)
	issued, err := m.SignIn(context.Background(), SignInEvent{UserID: "u1"})
	require.NoError(t, err)

	other := NewManager(NewPipeline(), "other-secret", time.Hour)
	_, err = other.Parse(issued.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := NewManager(NewPipeline(), "secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.SignIn(context.Background(), SignInEvent{UserID: "u1"})
	require.NoError(t, err)
	_, err = m.Parse(old.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)
}
