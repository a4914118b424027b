package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/internal/models"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var userCols = []string{"id", "name", "email", "password_hash", "email_verified", "image", "is_two_factor_enabled", "created_at", "updated_at"}

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	now := time.Now()
	name, hash := "A", "$2a$10$hash"
	mock.ExpectQuery(`(?s)^\s*INSERT INTO users .*RETURNING created_at, updated_at`).
		WithArgs("u1", "A", "a@x.com", "$2a$10$hash", nil, nil, false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u := &models.User{ID: "u1", Name: &name, Email: "a@x.com", PasswordHash: &hash}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, now, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_Duplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{ID: "u1", Email: "a@x.com"})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	verified := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`SELECT .* FROM users WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("u1", "A", "a@x.com", "hash", verified, nil, true, time.Now(), time.Now()))

	u, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, u.Name)
	assert.Equal(t, "A", *u.Name)
	assert.True(t, u.HasPassword())
	assert.True(t, u.IsVerified())
	assert.Nil(t, u.Image)
	assert.True(t, u.IsTwoFactorEnabled)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_MarkEmailVerified(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	at := time.Now()

	mock.ExpectExec(`UPDATE users SET email_verified=\$1, email=\$2`).
		WithArgs(at, "new@x.com", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkEmailVerified(context.Background(), "u1", "new@x.com", at))

	mock.ExpectExec(`UPDATE users SET email_verified`).
		WithArgs(at, "new@x.com", "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.MarkEmailVerified(context.Background(), "gone", "new@x.com", at), ErrNotFound)
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`UPDATE users SET password_hash=\$1`).
		WithArgs("h2", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdatePassword(context.Background(), "u1", "h2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_UpsertSingleStatement(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepository(db, models.TokenPasswordReset)

	created := time.Now()
	expires := created.Add(5 * time.Minute)
	mock.ExpectQuery(`(?s)INSERT INTO password_reset_tokens .*ON CONFLICT \(email\) DO UPDATE`).
		WithArgs("t1", "a@x.com", nil, "hash", expires).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	tok := &models.Token{ID: "t1", Email: "a@x.com", TokenHash: "hash", Expires: expires}
	require.NoError(t, repo.Upsert(context.Background(), tok))
	assert.Equal(t, models.TokenPasswordReset, tok.Kind)
	assert.Equal(t, created, tok.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepository_GetByHash(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepository(db, models.TokenVerification)

	exp := time.Now().Add(time.Minute)
	mock.ExpectQuery(`SELECT .* FROM verification_tokens WHERE token_hash = \$1`).
		WithArgs("hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "user_id", "token_hash", "expires", "created_at"}).
			AddRow("t1", "a@x.com", "u1", "hash", exp, time.Now()))

	tok, err := repo.GetByHash(context.Background(), "hash")
	require.NoError(t, err)
	require.NotNil(t, tok.UserID)
	assert.Equal(t, "u1", *tok.UserID)
	assert.Equal(t, models.TokenVerification, tok.Kind)
}

func TestTokenRepository_GetByEmail_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepository(db, models.TokenTwoFactor)

	mock.ExpectQuery(`SELECT .* FROM two_factor_tokens WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "a@x.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepository_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepository(db, models.TokenTwoFactor)

	mock.ExpectExec(`DELETE FROM two_factor_tokens WHERE id = \$1`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "t1"))

	mock.ExpectExec(`DELETE FROM two_factor_tokens WHERE id = \$1`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Delete(context.Background(), "t1"), ErrNotFound)

	mock.ExpectExec(`DELETE FROM two_factor_tokens`).
		WillReturnError(errors.New("db down"))
	err := repo.Delete(context.Background(), "t1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewTokenRepository_UnknownKindPanics(t *testing.T) {
	assert.Panics(t, func() { NewTokenRepository(nil, models.TokenKind("bogus")) })
}

func TestAccountRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs("a1", "u1", "github", "42").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	require.NoError(t, repo.Create(ctx, &models.LinkedAccount{ID: "a1", UserID: "u1", Provider: "github", ProviderAccountID: "42"}))

	mock.ExpectQuery(`(?s)SELECT .* FROM accounts\s+WHERE provider = \$1 AND provider_account_id = \$2`).
		WithArgs("github", "42").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "provider", "provider_account_id", "created_at"}).
			AddRow("a1", "u1", "github", "42", time.Now()))
	acc, err := repo.GetByProvider(ctx, "github", "42")
	require.NoError(t, err)
	assert.Equal(t, "u1", acc.UserID)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	n, err := repo.CountByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTwoFactorConfirmationRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTwoFactorConfirmationRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`(?s)INSERT INTO two_factor_confirmations .*ON CONFLICT \(user_id\)`).
		WithArgs("c1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	require.NoError(t, repo.Replace(ctx, &models.TwoFactorConfirmation{ID: "c1", UserID: "u1"}))

	mock.ExpectExec(`DELETE FROM two_factor_confirmations WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.DeleteByUserID(ctx, "u1"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithTxRollsBack(t *testing.T) {
	db, mock := newMock(t)
	store := NewPostgresStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET email_verified`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM verification_tokens`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(ctx context.Context, r *Repositories) error {
		if err := r.Users.MarkEmailVerified(ctx, "u1", "a@x.com", time.Now()); err != nil {
			return err
		}
		return r.Tokens(models.TokenVerification).Delete(ctx, "t1")
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
