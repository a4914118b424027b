package models

// Request payloads double as service inputs; `validate` tags are checked by
// the services, not by gin binding.

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Code     string `json:"code,omitempty"`
}

type RegisterRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,min=6"`
}

type ResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type NewPasswordRequest struct {
	Token              string `json:"token" validate:"required"`
	Password           string `json:"password" validate:"required,min=6"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required,min=6"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// SettingsRequest carries optional fields; nil or empty means "leave unchanged".
type SettingsRequest struct {
	Name               *string `json:"name,omitempty"`
	Email              *string `json:"email,omitempty" validate:"omitempty,email"`
	Password           *string `json:"password,omitempty" validate:"omitempty,min=6"`
	NewPassword        *string `json:"newPassword,omitempty" validate:"omitempty,min=6"`
	IsTwoFactorEnabled *bool   `json:"isTwoFactorEnabled,omitempty"`
}
