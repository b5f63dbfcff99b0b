package auth

import (
	"errors"
	"time"
)

// ErrEmailNotVerified indicates the account has not confirmed its address.
var ErrEmailNotVerified = errors.New("auth: email not verified")

// Account is the credential view of a user.
type Account struct {
	ID              int64
	Email           string
	PasswordHash    string
	EmailVerifiedAt *time.Time
}

// Verified reports whether the account confirmed its address.
func (a Account) Verified() bool {
	return a.EmailVerifiedAt != nil
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}
