package api

import (
	"errors"
	"net/mail"
	"strings"
)

const (
	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes, so longer passwords are refused.
	MaxPasswordLength = 72
)

var (
	ErrInvalidEmail    = errors.New("a valid email address is required")
	ErrInvalidPassword = errors.New("password must be between 8 and 72 bytes")
	ErrMissingField    = errors.New("required field is missing")
)

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == strings.TrimSpace(s)
}

func (r *RegisterRequest) Validate() error {
	if !validEmail(r.Email) {
		return ErrInvalidEmail
	}
	if len(r.Password) < MinPasswordLength || len(r.Password) > MaxPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

// Validate only checks presence. Format checks on login would tell an
// attacker which inputs are worth trying.
func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return ErrMissingField
	}
	return nil
}

func (r *OAuthCallbackRequest) Validate() error {
	if r.Provider == "" || r.ProviderID == "" {
		return ErrMissingField
	}
	if r.Email != "" && !validEmail(r.Email) {
		return ErrInvalidEmail
	}
	return nil
}

func (r *RefreshRequest) Validate() error {
	if r.RefreshToken == "" {
		return ErrMissingField
	}
	return nil
}

func (r *LogoutRequest) Validate() error {
	if r.RefreshToken == "" {
		return ErrMissingField
	}
	return nil
}
