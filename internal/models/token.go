package models

import "time"

type TokenKind string

const (
	TokenVerification  TokenKind = "verification"
	TokenPasswordReset TokenKind = "password_reset"
	TokenTwoFactor     TokenKind = "two_factor"
)

// Token is a single-use credential bound to an email address. Only the keyed
// hash of the value is persisted; Value is populated once, at issuance.
type Token struct {
	ID        string    `json:"id"`
	Kind      TokenKind `json:"kind"`
	Email     string    `json:"email"`
	UserID    *string   `json:"user_id,omitempty"`
	TokenHash string    `json:"-"`
	Value     string    `json:"-"`
	Expires   time.Time `json:"expires"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.Expires)
}

// TwoFactorConfirmation marks that the user's current sign-in passed its 2FA
// challenge. It is consumed by the next successful sign-in.
type TwoFactorConfirmation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
