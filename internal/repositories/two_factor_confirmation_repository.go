package repositories

import (
	"context"
	"fmt"

	"authflow/internal/dbx"
	"authflow/internal/models"
)

type TwoFactorConfirmationRepository interface {
	// Replace drops any confirmation the user has and stores c.
	Replace(ctx context.Context, c *models.TwoFactorConfirmation) error
	GetByUserID(ctx context.Context, userID string) (*models.TwoFactorConfirmation, error)
	// DeleteByUserID returns ErrNotFound when there was nothing to consume.
	DeleteByUserID(ctx context.Context, userID string) error
}

type twoFactorConfirmationRepository struct {
	db dbx.DBTX
}

func NewTwoFactorConfirmationRepository(db dbx.DBTX) TwoFactorConfirmationRepository {
	return &twoFactorConfirmationRepository{db: db}
}

func (r *twoFactorConfirmationRepository) Replace(ctx context.Context, c *models.TwoFactorConfirmation) error {
	const q = `
		INSERT INTO two_factor_confirmations (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET id = EXCLUDED.id, created_at = NOW()
		RETURNING created_at
	`
	if err := r.db.QueryRowContext(ctx, q, c.ID, c.UserID).Scan(&c.CreatedAt); err != nil {
		return fmt.Errorf("replace two factor confirmation: %w", mapError(err))
	}
	return nil
}

func (r *twoFactorConfirmationRepository) GetByUserID(ctx context.Context, userID string) (*models.TwoFactorConfirmation, error) {
	const q = `SELECT id, user_id, created_at FROM two_factor_confirmations WHERE user_id = $1`
	c := &models.TwoFactorConfirmation{}
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

func (r *twoFactorConfirmationRepository) DeleteByUserID(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM two_factor_confirmations WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete two factor confirmation: %w", err)
	}
	return requireAffected(res)
}
