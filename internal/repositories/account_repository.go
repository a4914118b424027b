package repositories

import (
	"context"
	"fmt"

	"authflow/internal/dbx"
	"authflow/internal/models"
)

// AccountRepository stores OAuth provider linkages.
type AccountRepository interface {
	Create(ctx context.Context, account *models.LinkedAccount) error
	GetByProvider(ctx context.Context, provider, providerAccountID string) (*models.LinkedAccount, error)
	CountByUserID(ctx context.Context, userID string) (int, error)
}

type accountRepository struct {
	db dbx.DBTX
}

func NewAccountRepository(db dbx.DBTX) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, a *models.LinkedAccount) error {
	const q = `
		INSERT INTO accounts (id, user_id, provider, provider_account_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err := r.db.QueryRowContext(ctx, q, a.ID, a.UserID, a.Provider, a.ProviderAccountID).Scan(&a.CreatedAt); err != nil {
		return fmt.Errorf("create account: %w", mapError(err))
	}
	return nil
}

func (r *accountRepository) GetByProvider(ctx context.Context, provider, providerAccountID string) (*models.LinkedAccount, error) {
	const q = `
		SELECT id, user_id, provider, provider_account_id, created_at
		FROM accounts
		WHERE provider = $1 AND provider_account_id = $2
	`
	a := &models.LinkedAccount{}
	err := r.db.QueryRowContext(ctx, q, provider, providerAccountID).
		Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID, &a.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (r *accountRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}
