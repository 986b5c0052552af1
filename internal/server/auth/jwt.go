// Package auth holds the credential primitives of the server: bcrypt
// password hashing and HS256 JWT access/refresh token issuance.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum length of an HMAC signing secret.
const MinSecretLength = 32

const refreshTokenType = "refresh"

// TokenKind selects which secret and which "type" claim Verify expects.
type TokenKind int

const (
	KindAccess TokenKind = iota
	KindRefresh
)

func (k TokenKind) String() string {
	if k == KindRefresh {
		return "refresh"
	}
	return "access"
}

var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenWrongType        = errors.New("token has wrong type")

	ErrWeakSecret   = fmt.Errorf("signing secrets must be at least %d bytes", MinSecretLength)
	ErrSharedSecret = errors.New("access and refresh secrets must differ")
)

// Claims is the signed payload of both token kinds. Type is only set on
// refresh tokens; the jti makes two tokens minted in the same second differ.
type Claims struct {
	Email string `json:"email"`
	Type  string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenIssuer signs and verifies access and refresh tokens, each class
// with its own secret.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

type IssuerOption func(*TokenIssuer)

// WithClock overrides time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *TokenIssuer) { i.now = now }
}

func NewTokenIssuer(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration, opts ...IssuerOption) (*TokenIssuer, error) {
	if len(accessSecret) < MinSecretLength || len(refreshSecret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, ErrSharedSecret
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	i := &TokenIssuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// AccessTTL is the access token lifetime, reported to callers as expires_in.
func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

func (i *TokenIssuer) IssueAccessToken(user *models.User) (string, error) {
	token, _, err := i.sign(user, KindAccess)
	return token, err
}

// IssueRefreshToken also returns the expiry so the session row can share it.
func (i *TokenIssuer) IssueRefreshToken(user *models.User) (string, time.Time, error) {
	return i.sign(user, KindRefresh)
}

func (i *TokenIssuer) sign(user *models.User, kind TokenKind) (string, time.Time, error) {
	now := i.now()
	ttl, secret := i.accessTTL, i.accessSecret
	claims := Claims{Email: user.Email}
	if kind == KindRefresh {
		ttl, secret = i.refreshTTL, i.refreshSecret
		claims.Type = refreshTokenType
	}
	expiresAt := now.Add(ttl)

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   user.ID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error signing %s token: %w", kind, err)
	}
	return signed, expiresAt.Truncate(time.Second), nil
}

// Verify checks signature, expiry and type of tokenString. The returned
// error is one of ErrTokenMalformed, ErrTokenSignatureInvalid,
// ErrTokenExpired or ErrTokenWrongType.
func (i *TokenIssuer) Verify(tokenString string, kind TokenKind) (*Claims, error) {
	secret := i.accessSecret
	if kind == KindRefresh {
		secret = i.refreshSecret
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	isRefresh := claims.Type == refreshTokenType
	if isRefresh != (kind == KindRefresh) {
		return nil, ErrTokenWrongType
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}
