package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialVerifier_Verify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "a@x.com", "secret1", userOpts{verified: true})
	f.seedUser(t, "oauth@x.com", "", userOpts{verified: true, noPass: true})

	got, err := f.verifier.Verify(ctx, " a@x.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.verifier.Verify(ctx, "a@x.com", "wrong")
	requireKind(t, err, ErrBadPassword)

	_, err = f.verifier.Verify(ctx, "missing@x.com", "secret1")
	requireKind(t, err, ErrUserNotFound)

	_, err = f.verifier.Verify(ctx, "oauth@x.com", "anything")
	requireKind(t, err, ErrUserNotFound)

	_, err = f.verifier.Verify(ctx, "A@X.COM", "secret1")
	requireKind(t, err, ErrUserNotFound)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)
	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.NoError(t, h.Compare(hash, "secret1"))
	assert.Error(t, h.Compare(hash, "secret2"))
}
