package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/internal/models"
)

func registerReq(email string) models.RegisterRequest {
	return models.RegisterRequest{Email: email, Name: "Ann", Password: "secret1", ConfirmPassword: "secret1"}
}

func TestRegister_CreatesUnverifiedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, err := f.register.Register(ctx, registerReq(" Ann@X.com "))
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmationSent, status)

	u, err := f.store.Repos().Users.GetByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.False(t, u.IsVerified())
	require.NotNil(t, u.Name)
	assert.Equal(t, "Ann", *u.Name)
	require.NoError(t, f.hasher.Compare(*u.PasswordHash, "secret1"))

	n := f.notifier.last(t, NotifyVerify)
	assert.Equal(t, "ann@x.com", n.Email)
	tok, ok := f.tokens.LookupByToken(ctx, models.TokenVerification, n.Token)
	require.True(t, ok)
	assert.Equal(t, u.ID, *tok.UserID)
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "taken@x.com", "secret1", userOpts{})

	_, err := f.register.Register(ctx, registerReq("taken@x.com"))
	requireKind(t, err, ErrEmailTaken)

	req := registerReq("b@x.com")
	req.ConfirmPassword = "secret2"
	_, err = f.register.Register(ctx, req)
	requireKind(t, err, ErrPasswordMismatch)

	req = registerReq("b@x.com")
	req.Password, req.ConfirmPassword = "123", "123"
	_, err = f.register.Register(ctx, req)
	requireKind(t, err, ErrInvalidInput)

	req = registerReq("b@x.com")
	req.Name = "   "
	_, err = f.register.Register(ctx, req)
	requireKind(t, err, ErrInvalidInput)

	assert.Zero(t, f.notifier.count())
}

func TestRegister_NotificationFailureKeepsUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.err = errors.New("smtp down")

	_, err := f.register.Register(ctx, registerReq("a@x.com"))
	requireKind(t, err, ErrNotificationFailed)

	_, err = f.store.Repos().Users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	// signing in resends the link once mail works again
	f.notifier.err = nil
	res, err := f.signin.Login(ctx, login("a@x.com", "secret1", ""))
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmationSent, res.Status)
}
