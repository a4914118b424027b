package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"authflow/internal/logging"
	"authflow/internal/models"
	"authflow/internal/repositories"
	"authflow/internal/utils"
)

const defaultTokenTTL = 5 * time.Minute

type TokenConfig struct {
	VerificationTTL  time.Duration
	PasswordResetTTL time.Duration
	TwoFactorTTL     time.Duration
	CodeDigits       int
}

// TokenService issues, finds and consumes the three single-use token kinds.
// Values are never stored: the repository keeps a keyed hash, and the
// plaintext only travels back to the caller of Issue.
type TokenService struct {
	store  repositories.Store
	hasher *utils.TokenHasher
	ttl    map[models.TokenKind]time.Duration
	digits int
	log    logging.Logger
	now    func() time.Time
}

func NewTokenService(store repositories.Store, hasher *utils.TokenHasher, cfg TokenConfig, log logging.Logger) *TokenService {
	ttl := map[models.TokenKind]time.Duration{
		models.TokenVerification:  cfg.VerificationTTL,
		models.TokenPasswordReset: cfg.PasswordResetTTL,
		models.TokenTwoFactor:     cfg.TwoFactorTTL,
	}
	for k, d := range ttl {
		if d <= 0 {
			ttl[k] = defaultTokenTTL
		}
	}
	digits := cfg.CodeDigits
	if digits <= 0 {
		digits = 6
	}
	return &TokenService{
		store:  store,
		hasher: hasher,
		ttl:    ttl,
		digits: digits,
		log:    log.With("component", "tokens"),
		now:    time.Now,
	}
}

// Issue creates a fresh token for email and replaces any live token of the
// same kind for that email. The returned token carries the plaintext Value.
func (s *TokenService) Issue(ctx context.Context, kind models.TokenKind, email string, userID *string) (*models.Token, error) {
	value, err := s.newValue(kind)
	if err != nil {
		return nil, fmt.Errorf("generate %s token: %w", kind, err)
	}
	tok := &models.Token{
		ID:        uuid.NewString(),
		Kind:      kind,
		Email:     email,
		UserID:    userID,
		TokenHash: s.hasher.Hash(value),
		Expires:   s.now().Add(s.ttl[kind]),
	}
	if err := s.store.Repos().Tokens(kind).Upsert(ctx, tok); err != nil {
		return nil, fmt.Errorf("store %s token: %w", kind, err)
	}
	tok.Value = value
	s.log.Info(ctx, "token issued", "kind", kind, "token_id", tok.ID, "expires", tok.Expires)
	return tok, nil
}

func (s *TokenService) newValue(kind models.TokenKind) (string, error) {
	if kind == models.TokenTwoFactor {
		return utils.NewNumericCode(s.digits)
	}
	return utils.NewOpaqueToken(32)
}

// LookupByToken finds the token whose value is presented. Store failures are
// logged and reported as absent.
func (s *TokenService) LookupByToken(ctx context.Context, kind models.TokenKind, value string) (*models.Token, bool) {
	if value == "" {
		return nil, false
	}
	tok, err := s.store.Repos().Tokens(kind).GetByHash(ctx, s.hasher.Hash(value))
	return s.found(ctx, kind, tok, err)
}

func (s *TokenService) LookupByEmail(ctx context.Context, kind models.TokenKind, email string) (*models.Token, bool) {
	tok, err := s.store.Repos().Tokens(kind).GetByEmail(ctx, email)
	return s.found(ctx, kind, tok, err)
}

func (s *TokenService) found(ctx context.Context, kind models.TokenKind, tok *models.Token, err error) (*models.Token, bool) {
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		s.log.Error(ctx, "token lookup failed", "kind", kind, "error", err)
		return nil, false
	}
	return tok, true
}

// Consume deletes a token outside any transaction. repositories.ErrNotFound
// means someone else consumed it first.
func (s *TokenService) Consume(ctx context.Context, kind models.TokenKind, id string) error {
	return s.store.Repos().Tokens(kind).Delete(ctx, id)
}

// Matches compares a presented value with the stored hash in constant time.
func (s *TokenService) Matches(tok *models.Token, presented string) bool {
	return s.hasher.Matches(tok.TokenHash, presented)
}

func (s *TokenService) Expired(tok *models.Token) bool {
	return tok.Expired(s.now())
}
