// Package services contains the server-side business logic: the identity
// resolver, the authentication orchestrator (AuthService) and the profile
// service (UserService). Storage, hashing and token signing are injected.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// UserStore is the persistent user store. Misses return common.ErrNotFound,
// email or identity collisions common.ErrAlreadyExists.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByOAuthIdentity(ctx context.Context, provider, providerID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	LinkOAuthIdentity(ctx context.Context, id, provider, providerID string) (*models.User, error)
	List(ctx context.Context, page, limit int) (*models.UserPage, error)
}

// SessionStore persists refresh-token sessions. Rotate must be atomic.
type SessionStore interface {
	Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.Session, error)
	FindValid(ctx context.Context, token string) (*models.Session, error)
	Revoke(ctx context.Context, userID, token string) error
	Rotate(ctx context.Context, userID, oldToken, newToken string, newExpiresAt time.Time) (*models.Session, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	DummyVerify(password string)
}

type TokenIssuer interface {
	IssueAccessToken(user *models.User) (string, error)
	IssueRefreshToken(user *models.User) (string, time.Time, error)
	Verify(token string, kind auth.TokenKind) (*auth.Claims, error)
	AccessTTL() time.Duration
}
