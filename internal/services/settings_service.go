package services

import (
	"context"
	"errors"
	"strings"

	"authflow/internal/logging"
	"authflow/internal/models"
	"authflow/internal/repositories"
)

type SettingsService interface {
	Update(ctx context.Context, userID string, req models.SettingsRequest) (Status, error)
}

type settingsService struct {
	store    repositories.Store
	verifier *CredentialVerifier
	hasher   PasswordHasher
	tokens   *TokenService
	notifier Notifier
	log      logging.Logger
}

func NewSettingsService(store repositories.Store, verifier *CredentialVerifier, hasher PasswordHasher, tokens *TokenService, notifier Notifier, log logging.Logger) SettingsService {
	return &settingsService{
		store:    store,
		verifier: verifier,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		log:      log.With("component", "settings"),
	}
}

func present(s *string) bool {
	return s != nil && *s != ""
}

// Update applies profile changes for the signed-in user. Users that came in
// through an OAuth provider keep their email, password and 2FA setting; only
// their name can change. A new email is not applied directly: a verification
// link goes to the new address and nothing else in the request is saved.
func (s *settingsService) Update(ctx context.Context, userID string, req models.SettingsRequest) (Status, error) {
	if userID == "" {
		return "", ErrUnauthorized
	}
	repos := s.store.Repos()
	user, err := repos.Users.GetByID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", internal(err)
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}
	// empty strings mean "unchanged", same as omitted fields
	for _, f := range []**string{&req.Email, &req.Password, &req.NewPassword} {
		if *f != nil && **f == "" {
			*f = nil
		}
	}
	if err := validateInput(req); err != nil {
		return "", err
	}
	if present(req.Password) && !present(req.NewPassword) {
		return "", invalidInput("New password is required!")
	}
	if present(req.NewPassword) && !present(req.Password) {
		return "", invalidInput("Current password is required!")
	}
	if req.Name != nil && *req.Name != "" && strings.TrimSpace(*req.Name) == "" {
		return "", invalidInput("Name can't be empty!")
	}

	linked, err := repos.Accounts.CountByUserID(ctx, user.ID)
	if err != nil {
		return "", internal(err)
	}
	if linked > 0 {
		req.Email, req.Password, req.NewPassword, req.IsTwoFactorEnabled = nil, nil, nil, nil
	}

	if present(req.Email) && *req.Email != user.Email {
		return s.changeEmail(ctx, user, *req.Email)
	}

	if present(req.Password) {
		if err := s.verifier.CheckPassword(user, *req.Password); err != nil {
			return "", ErrBadPassword
		}
		hash, err := s.hasher.Hash(*req.NewPassword)
		if err != nil {
			return "", internal(err)
		}
		user.PasswordHash = &hash
	}
	if req.Name != nil && *req.Name != "" {
		name := strings.TrimSpace(*req.Name)
		user.Name = &name
	}
	if req.IsTwoFactorEnabled != nil {
		user.IsTwoFactorEnabled = *req.IsTwoFactorEnabled
	}

	if err := repos.Users.Update(ctx, user); err != nil {
		return "", internal(err)
	}
	s.log.Info(ctx, "settings updated", "user_id", user.ID)
	return StatusSettingsUpdated, nil
}

func (s *settingsService) changeEmail(ctx context.Context, user *models.User, email string) (Status, error) {
	other, err := s.store.Repos().Users.GetByEmail(ctx, email)
	if err == nil && other.ID != user.ID {
		return "", ErrEmailTaken
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return "", internal(err)
	}

	tok, err := s.tokens.Issue(ctx, models.TokenVerification, email, &user.ID)
	if err != nil {
		return "", internal(err)
	}
	if err := s.notifier.Send(ctx, Notification{Kind: NotifyVerify, Email: tok.Email, Token: tok.Value}); err != nil {
		return "", notificationFailed(err)
	}
	s.log.Info(ctx, "email change requested", "user_id", user.ID)
	return StatusConfirmationSent, nil
}
