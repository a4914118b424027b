package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"authflow/internal/logging"
	"authflow/internal/models"
	"authflow/internal/repositories"
)

type VerificationService interface {
	VerifyEmail(ctx context.Context, token string) (Status, error)
}

type verificationService struct {
	store  repositories.Store
	tokens *TokenService
	log    logging.Logger
	now    func() time.Time
}

func NewVerificationService(store repositories.Store, tokens *TokenService, log logging.Logger) VerificationService {
	return &verificationService{
		store:  store,
		tokens: tokens,
		log:    log.With("component", "verification"),
		now:    time.Now,
	}
}

// VerifyEmail confirms the address a verification token was issued for. The
// same path serves first confirmation and email changes: the user's email is
// set to the token's email either way.
func (s *verificationService) VerifyEmail(ctx context.Context, token string) (Status, error) {
	token = strings.TrimSpace(token)
	if err := validateInput(models.VerifyEmailRequest{Token: token}); err != nil {
		return "", ErrTokenNotFound
	}
	tok, ok := s.tokens.LookupByToken(ctx, models.TokenVerification, token)
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

	err = s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		if err := r.Users.MarkEmailVerified(ctx, user.ID, tok.Email, s.now()); err != nil {
			return err
		}
		return r.VerificationTokens.Delete(ctx, tok.ID)
	})
	switch {
	case errors.Is(err, repositories.ErrDuplicate):
		return "", ErrEmailTaken
	case errors.Is(err, repositories.ErrNotFound):
		return "", ErrTokenNotFound
	case err != nil:
		return "", internal(err)
	}
	s.log.Info(ctx, "email verified", "user_id", user.ID, "changed", user.Email != tok.Email)
	return StatusVerified, nil
}

// resolveTokenUser finds the user a token belongs to: by user id when the
// token carries one, otherwise by the token's email.
func resolveTokenUser(ctx context.Context, store repositories.Store, log logging.Logger, tok *models.Token) (*models.User, error) {
	users := store.Repos().Users
	var (
		user *models.User
		err  error
	)
	if tok.UserID != nil {
		user, err = users.GetByID(ctx, *tok.UserID)
	} else {
		log.Warn(ctx, "token without user id, resolving by email", "kind", tok.Kind, "token_id", tok.ID)
		user, err = users.GetByEmail(ctx, tok.Email)
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	return user, nil
}
