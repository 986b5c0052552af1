// Package sessions stores refresh-token sessions. Tokens never reach the
// backing store: rows are keyed by the SHA-256 digest of the token.
package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository persists refresh-token sessions.
type Repository interface {
	// Create records a new valid session. A past expiresAt yields
	// common.ErrInvalidExpiry, a duplicate token common.ErrAlreadyExists.
	Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.Session, error)

	// FindValid returns the session for token if it is neither revoked nor
	// expired, otherwise common.ErrNotFound.
	FindValid(ctx context.Context, token string) (*models.Session, error)

	// Revoke marks the session owned by userID as revoked. Revoking a
	// missing, foreign or already revoked session is not an error.
	Revoke(ctx context.Context, userID, token string) error

	// Rotate revokes oldToken and creates a session for newToken as one
	// atomic step. Of several concurrent rotations of the same token at most
	// one succeeds; the others get common.ErrNotFound.
	Rotate(ctx context.Context, userID, oldToken, newToken string, newExpiresAt time.Time) (*models.Session, error)

	// PurgeExpired deletes sessions that expired at or before before and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// HashToken is the storage key for a refresh token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock overrides time.Now for validity checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
