package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"authflow/internal/models"
	"authflow/internal/repositories"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil only when password matches hash.
	Compare(hash, password string) error
}

type bcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *bcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// CredentialVerifier checks an email/password pair against stored users.
type CredentialVerifier struct {
	store  repositories.Store
	hasher PasswordHasher
}

func NewCredentialVerifier(store repositories.Store, hasher PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{store: store, hasher: hasher}
}

// Lookup returns the user with a password on file for email. The email is
// matched exactly as stored, after trimming surrounding space.
func (v *CredentialVerifier) Lookup(ctx context.Context, email string) (*models.User, error) {
	user, err := v.store.Repos().Users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	if !user.HasPassword() {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// CheckPassword compares password against the user's stored hash.
func (v *CredentialVerifier) CheckPassword(user *models.User, password string) error {
	if !user.HasPassword() {
		return ErrUserNotFound
	}
	if err := v.hasher.Compare(*user.PasswordHash, password); err != nil {
		return ErrBadPassword
	}
	return nil
}

// Verify is Lookup followed by CheckPassword.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (*models.User, error) {
	user, err := v.Lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := v.CheckPassword(user, password); err != nil {
		return nil, err
	}
	return user, nil
}
