package services

import (
	"context"
	"errors"
	"strings"

	"authflow/internal/logging"
	"authflow/internal/models"
	"authflow/internal/repositories"
)

type PasswordResetService interface {
	RequestReset(ctx context.Context, req models.ResetRequest) (Status, error)
	ResetPassword(ctx context.Context, req models.NewPasswordRequest) (Status, error)
}

type passwordResetService struct {
	store    repositories.Store
	hasher   PasswordHasher
	tokens   *TokenService
	notifier Notifier
	log      logging.Logger
}

func NewPasswordResetService(store repositories.Store, hasher PasswordHasher, tokens *TokenService, notifier Notifier, log logging.Logger) PasswordResetService {
	return &passwordResetService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		log:      log.With("component", "password_reset"),
	}
}

func (s *passwordResetService) RequestReset(ctx context.Context, req models.ResetRequest) (Status, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateInput(req); err != nil {
		return "", err
	}
	user, err := s.store.Repos().Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repositories.ErrNotFound) {
		s.log.Info(ctx, "reset requested for unknown email")
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", internal(err)
	}

	tok, err := s.tokens.Issue(ctx, models.TokenPasswordReset, user.Email, &user.ID)
	if err != nil {
		return "", internal(err)
	}
	if err := s.notifier.Send(ctx, Notification{Kind: NotifyReset, Email: tok.Email, Token: tok.Value}); err != nil {
		return "", notificationFailed(err)
	}
	s.log.Info(ctx, "reset requested", "user_id", user.ID)
	return StatusResetSent, nil
}

// ResetPassword sets a new password with a reset token. The password update
// and the token deletion commit together, so a token resets at most once.
func (s *passwordResetService) ResetPassword(ctx context.Context, req models.NewPasswordRequest) (Status, error) {
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return "", ErrTokenNotFound
	}
	if err := validateInput(req); err != nil {
		return "", err
	}
	if req.Password != req.ConfirmNewPassword {
		return "", ErrPasswordMismatch
	}

	tok, ok := s.tokens.LookupByToken(ctx, models.TokenPasswordReset, req.Token)
	if !ok {
		return "", ErrTokenNotFound
	}
	if s.tokens.Expired(tok) {
		return "", ErrTokenExpired
	}
	user, err := resolveTokenUser(ctx, s.store, s.log, tok)
	if err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return "", internal(err)
	}
	err = s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		if err := r.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}
		return r.PasswordResetTokens.Delete(ctx, tok.ID)
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", internal(err)
	}
	s.log.Info(ctx, "password updated", "user_id", user.ID)
	return StatusPasswordUpdated, nil
}
