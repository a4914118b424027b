package models

import "time"

type User struct {
	ID                 string     `json:"id"`
	Name               *string    `json:"name"`
	Email              string     `json:"email"`
	PasswordHash       *string    `json:"-"` // nil for OAuth-only accounts
	EmailVerified      *time.Time `json:"email_verified"`
	Image              *string    `json:"image"`
	IsTwoFactorEnabled bool       `json:"is_two_factor_enabled"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HasPassword reports whether the user can sign in with credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsVerified reports whether the email address has been confirmed.
func (u *User) IsVerified() bool {
	return u.EmailVerified != nil
}

// LinkedAccount links a user to an external OAuth provider identity.
type LinkedAccount struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"provider_account_id"`
	CreatedAt         time.Time `json:"created_at"`
}
