package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	_ UserStore      = (*users.MemoryRepository)(nil)
	_ UserStore      = (*users.PostgresRepository)(nil)
	_ SessionStore   = (*sessions.MemoryRepository)(nil)
	_ SessionStore   = (*sessions.PostgresRepository)(nil)
	_ SessionStore   = (*sessions.RedisRepository)(nil)
	_ PasswordHasher = (*auth.BcryptHasher)(nil)
	_ TokenIssuer    = (*auth.TokenIssuer)(nil)
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	svc      *AuthService
	users    *users.MemoryRepository
	sessions *sessions.MemoryRepository
	hasher   *auth.BcryptHasher
	issuer   *auth.TokenIssuer
	clock    *testClock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := &testClock{t: time.Now().Truncate(time.Second)}

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	issuer, err := auth.NewTokenIssuer(
		[]byte(strings.Repeat("A", 32)),
		[]byte(strings.Repeat("R", 32)),
		15*time.Minute, 7*24*time.Hour,
		auth.WithClock(clock.Now),
	)
	require.NoError(t, err)

	u := users.NewMemoryRepository()
	s := sessions.NewMemoryRepository(sessions.WithClock(clock.Now))

	return &env{
		svc:      NewAuthService(u, s, hasher, issuer, logging.Nop()),
		users:    u,
		sessions: s,
		hasher:   hasher,
		issuer:   issuer,
		clock:    clock,
	}
}

func (e *env) register(t *testing.T, email, password string) *TokenPair {
	t.Helper()
	pair, err := e.svc.Register(context.Background(), RegisterRequest{Email: email, Password: password})
	require.NoError(t, err)
	return pair
}

func (e *env) seedOAuthUser(t *testing.T, email, provider, id string) *models.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), &models.User{
		Email: email, OAuthProvider: &provider, OAuthID: &id, IsActive: true,
	})
	require.NoError(t, err)
	return u
}

func strp(s string) *string { return &s }

// failingUsers wraps a UserStore and fails selected calls.
type failingUsers struct {
	UserStore
	findByEmailErr    error
	findByIDErr       error
	findByIdentityErr error
	createErr         error
	updateErr         error
	linkErr           error
	listErr           error

	// identity lookups succeed with this user after the first miss
	raceWinner    *models.User
	identityCalls int

	listPage, listLimit int
}

func (f *failingUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.findByEmailErr != nil {
		return nil, f.findByEmailErr
	}
	return f.UserStore.FindByEmail(ctx, email)
}

func (f *failingUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.findByIDErr != nil {
		return nil, f.findByIDErr
	}
	return f.UserStore.FindByID(ctx, id)
}

func (f *failingUsers) FindByOAuthIdentity(ctx context.Context, provider, id string) (*models.User, error) {
	f.identityCalls++
	if f.raceWinner != nil && f.identityCalls > 1 {
		return f.raceWinner, nil
	}
	if f.findByIdentityErr != nil {
		return nil, f.findByIdentityErr
	}
	return f.UserStore.FindByOAuthIdentity(ctx, provider, id)
}

func (f *failingUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.UserStore.Create(ctx, u)
}

func (f *failingUsers) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.UserStore.Update(ctx, id, upd)
}

func (f *failingUsers) LinkOAuthIdentity(ctx context.Context, id, provider, providerID string) (*models.User, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	return f.UserStore.LinkOAuthIdentity(ctx, id, provider, providerID)
}

func (f *failingUsers) List(ctx context.Context, page, limit int) (*models.UserPage, error) {
	f.listPage, f.listLimit = page, limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.UserStore.List(ctx, page, limit)
}

// failingSessions wraps a SessionStore and fails selected calls.
type failingSessions struct {
	SessionStore
	createErr error
	findErr   error
	revokeErr error
	rotateErr error
}

func (f *failingSessions) Create(ctx context.Context, userID, token string, exp time.Time) (*models.Session, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.SessionStore.Create(ctx, userID, token, exp)
}

func (f *failingSessions) FindValid(ctx context.Context, token string) (*models.Session, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.SessionStore.FindValid(ctx, token)
}

func (f *failingSessions) Revoke(ctx context.Context, userID, token string) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	return f.SessionStore.Revoke(ctx, userID, token)
}

func (f *failingSessions) Rotate(ctx context.Context, userID, oldToken, newToken string, exp time.Time) (*models.Session, error) {
	if f.rotateErr != nil {
		return nil, f.rotateErr
	}
	return f.SessionStore.Rotate(ctx, userID, oldToken, newToken, exp)
}
