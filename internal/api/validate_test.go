package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"ok", RegisterRequest{Email: "alice@example.com", Password: "hunter22!"}, nil},
		{"no at sign", RegisterRequest{Email: "alice", Password: "hunter22!"}, ErrInvalidEmail},
		{"display name", RegisterRequest{Email: "Alice <alice@example.com>", Password: "hunter22!"}, ErrInvalidEmail},
		{"short password", RegisterRequest{Email: "alice@example.com", Password: "short"}, ErrInvalidPassword},
		{"long password", RegisterRequest{Email: "alice@example.com", Password: strings.Repeat("p", 73)}, ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.req.Validate(), tt.want)
		})
	}
}

func TestLoginRequest_Validate(t *testing.T) {
	assert.NoError(t, (&LoginRequest{Email: "x", Password: "y"}).Validate())
	assert.ErrorIs(t, (&LoginRequest{Email: " ", Password: "y"}).Validate(), ErrMissingField)
	assert.ErrorIs(t, (&LoginRequest{Email: "x"}).Validate(), ErrMissingField)
}

func TestOAuthCallbackRequest_Validate(t *testing.T) {
	assert.NoError(t, (&OAuthCallbackRequest{Provider: "google", ProviderID: "1"}).Validate())
	assert.ErrorIs(t, (&OAuthCallbackRequest{Provider: "google"}).Validate(), ErrMissingField)
	assert.ErrorIs(t, (&OAuthCallbackRequest{Provider: "google", ProviderID: "1", Email: "nope"}).Validate(), ErrInvalidEmail)
}

func TestTokenRequests_Validate(t *testing.T) {
	assert.ErrorIs(t, (&RefreshRequest{}).Validate(), ErrMissingField)
	assert.ErrorIs(t, (&LogoutRequest{}).Validate(), ErrMissingField)
	assert.NoError(t, (&RefreshRequest{RefreshToken: "t"}).Validate())
}
