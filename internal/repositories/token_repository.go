package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"authflow/internal/dbx"
	"authflow/internal/models"
)

// TokenRepository persists one token kind. Each email holds at most one row.
type TokenRepository interface {
	// Upsert inserts the token or replaces the email's existing one in a
	// single statement.
	Upsert(ctx context.Context, token *models.Token) error
	GetByHash(ctx context.Context, tokenHash string) (*models.Token, error)
	GetByEmail(ctx context.Context, email string) (*models.Token, error)
	// Delete returns ErrNotFound when no row had the id.
	Delete(ctx context.Context, id string) error
}

var tokenTables = map[models.TokenKind]string{
	models.TokenVerification:  "verification_tokens",
	models.TokenPasswordReset: "password_reset_tokens",
	models.TokenTwoFactor:     "two_factor_tokens",
}

type tokenRepository struct {
	db    dbx.DBTX
	kind  models.TokenKind
	table string
}

func NewTokenRepository(db dbx.DBTX, kind models.TokenKind) TokenRepository {
	table, ok := tokenTables[kind]
	if !ok {
		panic(fmt.Sprintf("repositories: unknown token kind %q", kind))
	}
	return &tokenRepository{db: db, kind: kind, table: table}
}

func (r *tokenRepository) Upsert(ctx context.Context, t *models.Token) error {
	q := `
		INSERT INTO ` + r.table + ` (id, email, user_id, token_hash, expires)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE
		SET id = EXCLUDED.id,
			user_id = EXCLUDED.user_id,
			token_hash = EXCLUDED.token_hash,
			expires = EXCLUDED.expires,
			created_at = NOW()
		RETURNING created_at
	`
	if err := r.db.QueryRowContext(ctx, q, t.ID, t.Email, nullString(t.UserID), t.TokenHash, t.Expires).Scan(&t.CreatedAt); err != nil {
		return fmt.Errorf("upsert %s: %w", r.table, mapError(err))
	}
	t.Kind = r.kind
	return nil
}

func (r *tokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.Token, error) {
	q := `SELECT id, email, user_id, token_hash, expires, created_at FROM ` + r.table + ` WHERE token_hash = $1 LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, tokenHash))
}

func (r *tokenRepository) GetByEmail(ctx context.Context, email string) (*models.Token, error) {
	q := `SELECT id, email, user_id, token_hash, expires, created_at FROM ` + r.table + ` WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, email))
}

func (r *tokenRepository) scanOne(row *sql.Row) (*models.Token, error) {
	t := &models.Token{Kind: r.kind}
	var userID sql.NullString
	if err := row.Scan(&t.ID, &t.Email, &userID, &t.TokenHash, &t.Expires, &t.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	t.UserID = stringPtr(userID)
	return t, nil
}

func (r *tokenRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.table, err)
	}
	return requireAffected(res)
}
