package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"authflow/internal/logging"
	"authflow/internal/models"
	"authflow/internal/repositories"
)

type RegistrationService interface {
	Register(ctx context.Context, req models.RegisterRequest) (Status, error)
}

type registrationService struct {
	store    repositories.Store
	hasher   PasswordHasher
	tokens   *TokenService
	notifier Notifier
	log      logging.Logger
}

func NewRegistrationService(store repositories.Store, hasher PasswordHasher, tokens *TokenService, notifier Notifier, log logging.Logger) RegistrationService {
	return &registrationService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		log:      log.With("component", "registration"),
	}
}

// Register creates an unverified user and mails a confirmation link. The
// user row is kept even if the mail cannot be sent; signing in later resends
// the link.
func (s *registrationService) Register(ctx context.Context, req models.RegisterRequest) (Status, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := validateInput(req); err != nil {
		return "", err
	}
	if req.Password != req.ConfirmPassword {
		return "", ErrPasswordMismatch
	}

	users := s.store.Repos().Users
	if _, err := users.GetByEmail(ctx, req.Email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return "", internal(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return "", internal(err)
	}
	name := req.Name
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         &name,
		Email:        req.Email,
		PasswordHash: &hash,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return "", ErrEmailTaken
		}
		return "", internal(err)
	}
	s.log.Info(ctx, "user registered", "user_id", user.ID)

	tok, err := s.tokens.Issue(ctx, models.TokenVerification, user.Email, &user.ID)
	if err != nil {
		return "", internal(err)
	}
	if err := s.notifier.Send(ctx, Notification{Kind: NotifyVerify, Email: tok.Email, Token: tok.Value}); err != nil {
		return "", notificationFailed(err)
	}
	return StatusConfirmationSent, nil
}
