package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"authflow/internal/logging"
	"authflow/internal/models"
	"authflow/internal/repositories"
	"authflow/internal/session"
)

type Status string

const (
	StatusConfirmationSent  Status = "confirmation_sent"
	StatusTwoFactorRequired Status = "two_factor_required"
	StatusAuthenticated     Status = "authenticated"
	StatusVerified          Status = "verified"
	StatusResetSent         Status = "reset_sent"
	StatusPasswordUpdated   Status = "password_updated"
	StatusSettingsUpdated   Status = "settings_updated"
)

// SignInResult is a non-error sign-in outcome. Session is set only for
// StatusAuthenticated.
type SignInResult struct {
	Status  Status
	Session *session.Issued
}

type SignInService interface {
	Login(ctx context.Context, req models.LoginRequest) (*SignInResult, error)
}

type signInService struct {
	store    repositories.Store
	verifier *CredentialVerifier
	tokens   *TokenService
	notifier Notifier
	sessions *session.Manager
	log      logging.Logger
}

func NewSignInService(store repositories.Store, verifier *CredentialVerifier, tokens *TokenService, notifier Notifier, sessions *session.Manager, log logging.Logger) SignInService {
	return &signInService{
		store:    store,
		verifier: verifier,
		tokens:   tokens,
		notifier: notifier,
		sessions: sessions,
		log:      log.With("component", "signin"),
	}
}

// Login walks the credential sign-in: user lookup, email confirmation,
// password check, second factor, and finally session issuance. Every exit
// before the last step leaves no session behind.
func (s *signInService) Login(ctx context.Context, req models.LoginRequest) (*SignInResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	if err := validateInput(req); err != nil {
		return nil, err
	}

	user, err := s.verifier.Lookup(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	if !user.IsVerified() {
		tok, err := s.tokens.Issue(ctx, models.TokenVerification, user.Email, &user.ID)
		if err != nil {
			return nil, internal(err)
		}
		if err := s.notifier.Send(ctx, Notification{Kind: NotifyVerify, Email: tok.Email, Token: tok.Value}); err != nil {
			return nil, notificationFailed(err)
		}
		s.log.Info(ctx, "unverified sign-in, confirmation resent", "user_id", user.ID)
		return &SignInResult{Status: StatusConfirmationSent}, nil
	}

	if err := s.verifier.CheckPassword(user, req.Password); err != nil {
		s.log.Info(ctx, "sign-in rejected", "user_id", user.ID, "reason", "bad_password")
		return nil, err
	}

	if user.IsTwoFactorEnabled {
		if req.Code == "" {
			tok, err := s.tokens.Issue(ctx, models.TokenTwoFactor, user.Email, &user.ID)
			if err != nil {
				return nil, internal(err)
			}
			if err := s.notifier.Send(ctx, Notification{Kind: NotifyTwoFactor, Email: tok.Email, Token: tok.Value}); err != nil {
				return nil, notificationFailed(err)
			}
			return &SignInResult{Status: StatusTwoFactorRequired}, nil
		}
		if err := s.confirmSecondFactor(ctx, user, req.Code); err != nil {
			return nil, err
		}
	}

	issued, err := s.sessions.SignIn(ctx, session.SignInEvent{Provider: session.ProviderCredentials, UserID: user.ID})
	if errors.Is(err, session.ErrSignInDenied) {
		s.log.Error(ctx, "sign-in gate denied an accepted sign-in", "user_id", user.ID, "error", err)
		return nil, ErrUnauthorized.wrap(err)
	}
	if err != nil {
		return nil, internal(err)
	}
	s.log.Info(ctx, "signed in", "user_id", user.ID, "provider", session.ProviderCredentials)
	return &SignInResult{Status: StatusAuthenticated, Session: issued}, nil
}

// confirmSecondFactor checks the submitted code and swaps the code for a
// TwoFactorConfirmation in one transaction.
func (s *signInService) confirmSecondFactor(ctx context.Context, user *models.User, code string) error {
	tok, ok := s.tokens.LookupByEmail(ctx, models.TokenTwoFactor, user.Email)
	if !ok || !s.tokens.Matches(tok, code) {
		return ErrInvalidCode
	}
	if s.tokens.Expired(tok) {
		return ErrCodeExpired
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, r *repositories.Repositories) error {
		if err := r.TwoFactorTokens.Delete(ctx, tok.ID); err != nil {
			return err
		}
		if err := r.Confirmations.DeleteByUserID(ctx, user.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return err
		}
		return r.Confirmations.Replace(ctx, &models.TwoFactorConfirmation{ID: uuid.NewString(), UserID: user.ID})
	})
	if errors.Is(err, repositories.ErrNotFound) {
		// the code was used by a concurrent attempt
		return ErrInvalidCode
	}
	if err != nil {
		return internal(err)
	}
	return nil
}
