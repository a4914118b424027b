package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"authflow/internal/dbx"
	"authflow/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error

	// MarkEmailVerified stamps the verification time and sets the confirmed address.
	MarkEmailVerified(ctx context.Context, id, email string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type userRepository struct {
	db dbx.DBTX
}

func NewUserRepository(db dbx.DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, password_hash, email_verified, image, is_two_factor_enabled, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (id, name, email, password_hash, email_verified, image, is_two_factor_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	var verified sql.NullTime
	if user.EmailVerified != nil {
		verified = sql.NullTime{Time: *user.EmailVerified, Valid: true}
	}
	err := r.db.QueryRowContext(ctx, q,
		user.ID,
		nullString(user.Name),
		user.Email,
		nullString(user.PasswordHash),
		verified,
		nullString(user.Image),
		user.IsTwoFactorEnabled,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", mapError(err))
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, email))
}

func (r *userRepository) scanOne(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var (
		name     sql.NullString
		hash     sql.NullString
		verified sql.NullTime
		image    sql.NullString
	)
	err := row.Scan(
		&u.ID, &name, &u.Email, &hash, &verified, &image,
		&u.IsTwoFactorEnabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	u.Name = stringPtr(name)
	u.PasswordHash = stringPtr(hash)
	u.Image = stringPtr(image)
	if verified.Valid {
		t := verified.Time
		u.EmailVerified = &t
	}
	return u, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	const q = `
		UPDATE users
		SET
			name=$1,
			email=$2,
			password_hash=$3,
			image=$4,
			is_two_factor_enabled=$5,
			updated_at=NOW()
		WHERE id=$6
	`
	res, err := r.db.ExecContext(ctx, q,
		nullString(user.Name),
		user.Email,
		nullString(user.PasswordHash),
		nullString(user.Image),
		user.IsTwoFactorEnabled,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", mapError(err))
	}
	return requireAffected(res)
}

func (r *userRepository) MarkEmailVerified(ctx context.Context, id, email string, at time.Time) error {
	const q = `UPDATE users SET email_verified=$1, email=$2, updated_at=NOW() WHERE id=$3`
	res, err := r.db.ExecContext(ctx, q, at, email, id)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", mapError(err))
	}
	return requireAffected(res)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const q = `UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2`
	res, err := r.db.ExecContext(ctx, q, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", mapError(err))
	}
	return requireAffected(res)
}
