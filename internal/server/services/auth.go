package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// TokenPair is what every successful sign-in or refresh returns. ExpiresIn
// is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Principal identifies the caller behind a verified access token.
type Principal struct {
	UserID string
	Email  string
}

type LoginRequest struct {
	Email    string
	Password string
}

type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthService runs the login, registration, OAuth, refresh and logout flows.
// All failures are *AuthError values.
type AuthService struct {
	users    UserStore
	sessions SessionStore
	hasher   PasswordHasher
	issuer   TokenIssuer
	resolver *IdentityResolver
	log      logging.Logger
}

func NewAuthService(users UserStore, sessions SessionStore, hasher PasswordHasher, issuer TokenIssuer, log logging.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		issuer:   issuer,
		resolver: NewIdentityResolver(users, hasher, log),
		log:      log.With("module", "auth"),
	}
}

// Login verifies email and password and opens a new session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*TokenPair, error) {
	email := common.NormalizeEmail(req.Email)

	user, err := s.resolver.ResolvePassword(ctx, email, req.Password)
	if err != nil {
		s.log.Warn(ctx, "login failed", "email", email, "reason", KindOf(err).String())
		return nil, err
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "login succeeded", "user_id", user.ID)
	return pair, nil
}

// Register creates a password account and signs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*TokenPair, error) {
	email := common.NormalizeEmail(req.Email)

	if err := s.resolver.EnsureEmailAvailable(ctx, email); err != nil {
		s.log.Warn(ctx, "registration rejected", "email", email, "reason", KindOf(err).String())
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fail(Internal, err)
	}

	user, err := s.users.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: &hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			// lost a race with a concurrent registration
			return nil, fail(AccountAlreadyExists, nil)
		}
		return nil, storageFailure("create user", err)
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return pair, nil
}

// OAuthCallback signs in the user behind a provider profile, linking or
// creating the account as needed.
func (s *AuthService) OAuthCallback(ctx context.Context, profile OAuthProfile) (*TokenPair, error) {
	user, err := s.resolver.ResolveOAuth(ctx, profile)
	if err != nil {
		s.log.Warn(ctx, "oauth sign-in failed", "provider", profile.Provider, "reason", KindOf(err).String())
		return nil, err
	}

	pair, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "oauth sign-in succeeded", "user_id", user.ID, "provider", profile.Provider)
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same atomic step that stores its replacement, so it can be
// used at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, tokenFailure(err)
	}

	session, err := s.sessions.FindValid(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "refresh with unknown or revoked session", "user_id", claims.UserID())
			return nil, fail(SessionNotFound, nil)
		}
		return nil, storageFailure("find session", err)
	}
	if session.UserID != claims.UserID() {
		s.log.Warn(ctx, "refresh token subject does not own session", "user_id", claims.UserID())
		return nil, fail(SessionNotFound, nil)
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fail(SessionNotFound, nil)
		}
		return nil, storageFailure("find user", err)
	}
	if !user.IsActive {
		return nil, fail(SessionNotFound, nil)
	}

	newRefresh, expiresAt, err := s.issuer.IssueRefreshToken(user)
	if err != nil {
		return nil, fail(Internal, err)
	}

	if _, err := s.sessions.Rotate(ctx, user.ID, refreshToken, newRefresh, expiresAt); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "refresh lost rotation race", "user_id", user.ID)
			return nil, fail(SessionNotFound, nil)
		}
		return nil, sessionWriteFailure("rotate session", err)
	}

	access, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, fail(Internal, err)
	}

	s.log.Info(ctx, "tokens refreshed", "user_id", user.ID)
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: newRefresh,
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the session for refreshToken. It succeeds whether or not
// such a session existed.
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	if err := s.sessions.Revoke(ctx, userID, refreshToken); err != nil {
		return storageFailure("revoke session", err)
	}
	s.log.Info(ctx, "logged out", "user_id", userID)
	return nil
}

// Authenticate verifies an access token and returns its principal.
func (s *AuthService) Authenticate(_ context.Context, accessToken string) (*Principal, error) {
	claims, err := s.issuer.Verify(accessToken, auth.KindAccess)
	if err != nil {
		return nil, tokenFailure(err)
	}
	return &Principal{UserID: claims.UserID(), Email: claims.Email}, nil
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, fail(Internal, err)
	}
	refresh, expiresAt, err := s.issuer.IssueRefreshToken(user)
	if err != nil {
		return nil, fail(Internal, err)
	}

	if _, err := s.sessions.Create(ctx, user.ID, refresh, expiresAt); err != nil {
		return nil, sessionWriteFailure("create session", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}

func tokenFailure(err error) *AuthError {
	if errors.Is(err, auth.ErrTokenExpired) {
		return fail(TokenExpired, err)
	}
	return fail(TokenInvalid, err)
}

// sessionWriteFailure separates store outages from collisions and bad
// expiries, which mean the issuer misbehaved.
func sessionWriteFailure(op string, err error) *AuthError {
	if errors.Is(err, common.ErrAlreadyExists) || errors.Is(err, common.ErrInvalidExpiry) {
		return fail(Internal, fmt.Errorf("%s: %w", op, err))
	}
	return storageFailure(op, err)
}
