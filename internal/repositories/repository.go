package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"authflow/internal/dbx"
	"authflow/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// Repositories groups the repositories bound to one handle, either the pool
// or a single transaction.
type Repositories struct {
	Users               UserRepository
	Accounts            AccountRepository
	VerificationTokens  TokenRepository
	PasswordResetTokens TokenRepository
	TwoFactorTokens     TokenRepository
	Confirmations       TwoFactorConfirmationRepository
}

// Tokens returns the repository for the given token kind, or nil.
func (r *Repositories) Tokens(kind models.TokenKind) TokenRepository {
	switch kind {
	case models.TokenVerification:
		return r.VerificationTokens
	case models.TokenPasswordReset:
		return r.PasswordResetTokens
	case models.TokenTwoFactor:
		return r.TwoFactorTokens
	}
	return nil
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() *Repositories
	WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error
}

type postgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) Repos() *Repositories {
	return bind(s.db)
}

func (s *postgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, r *Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, bind(tx))
	})
}

func bind(db dbx.DBTX) *Repositories {
	return &Repositories{
		Users:               NewUserRepository(db),
		Accounts:            NewAccountRepository(db),
		VerificationTokens:  NewTokenRepository(db, models.TokenVerification),
		PasswordResetTokens: NewTokenRepository(db, models.TokenPasswordReset),
		TwoFactorTokens:     NewTokenRepository(db, models.TokenTwoFactor),
		Confirmations:       NewTwoFactorConfirmationRepository(db),
	}
}

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
