package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// OAuthProfile is the identity reported by an external provider after a
// successful authorization.
type OAuthProfile struct {
	Provider      string
	ProviderID    string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
}

// IdentityResolver maps credentials to a canonical user. It returns either
// the user or an *AuthError.
type IdentityResolver struct {
	users  UserStore
	hasher PasswordHasher
	log    logging.Logger
}

func NewIdentityResolver(users UserStore, hasher PasswordHasher, log logging.Logger) *IdentityResolver {
	return &IdentityResolver{users: users, hasher: hasher, log: log.With("module", "identity")}
}

// EnsureEmailAvailable rejects registration for an email that already
// belongs to any account. Registration never links.
func (r *IdentityResolver) EnsureEmailAvailable(ctx context.Context, email string) error {
	_, err := r.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return fail(AccountAlreadyExists, nil)
	case errors.Is(err, common.ErrNotFound):
		return nil
	default:
		return storageFailure("find user by email", err)
	}
}

// ResolvePassword authenticates email/password. Every rejection is the same
// InvalidCredentials, and an unknown email still costs one bcrypt compare.
func (r *IdentityResolver) ResolvePassword(ctx context.Context, email, password string) (*models.User, error) {
	user, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			r.hasher.DummyVerify(password)
			return nil, fail(InvalidCredentials, nil)
		}
		return nil, storageFailure("find user by email", err)
	}

	if !user.HasPassword() {
		// OAuth-only account
		r.hasher.DummyVerify(password)
		return nil, fail(InvalidCredentials, nil)
	}
	if !r.hasher.Verify(password, *user.PasswordHash) {
		return nil, fail(InvalidCredentials, nil)
	}
	if !user.IsActive {
		return nil, fail(InvalidCredentials, nil)
	}

	return user, nil
}

// ResolveOAuth finds the user for a provider identity, linking it to an
// existing account with the same email or creating a new account.
func (r *IdentityResolver) ResolveOAuth(ctx context.Context, p OAuthProfile) (*models.User, error) {
	if p.Provider == "" || p.ProviderID == "" {
		return nil, fail(Internal, errors.New("oauth profile without provider identity"))
	}

	user, err := r.findByIdentity(ctx, p)
	if err == nil {
		return r.active(user)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, storageFailure("find user by oauth identity", err)
	}

	email := common.NormalizeEmail(p.Email)
	if email == "" {
		return nil, fail(MissingOAuthEmail, nil)
	}

	existing, err := r.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return r.link(ctx, existing, p)
	case errors.Is(err, common.ErrNotFound):
		return r.create(ctx, email, p)
	default:
		return nil, storageFailure("find user by email", err)
	}
}

func (r *IdentityResolver) findByIdentity(ctx context.Context, p OAuthProfile) (*models.User, error) {
	return r.users.FindByOAuthIdentity(ctx, p.Provider, p.ProviderID)
}

func (r *IdentityResolver) link(ctx context.Context, existing *models.User, p OAuthProfile) (*models.User, error) {
	if existing.HasOAuthIdentity() {
		// already linked to another identity; never overwrite it
		r.log.Warn(ctx, "oauth identity conflicts with linked account",
			"user_id", existing.ID, "provider", p.Provider)
		return nil, fail(AccountAlreadyExists, nil)
	}

	// existing may be stale; the store re-checks that nothing is linked yet
	linked, err := r.users.LinkOAuthIdentity(ctx, existing.ID, p.Provider, p.ProviderID)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return r.afterLostRace(ctx, p)
		}
		return nil, storageFailure("link oauth identity", err)
	}

	r.log.Info(ctx, "oauth identity linked", "user_id", linked.ID, "provider", p.Provider)
	return r.active(linked)
}

func (r *IdentityResolver) create(ctx context.Context, email string, p OAuthProfile) (*models.User, error) {
	created, err := r.users.Create(ctx, &models.User{
		Email:         email,
		FirstName:     p.GivenName,
		LastName:      p.FamilyName,
		OAuthProvider: &p.Provider,
		OAuthID:       &p.ProviderID,
		EmailVerified: p.EmailVerified,
		IsActive:      true,
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return r.afterLostRace(ctx, p)
		}
		return nil, storageFailure("create oauth user", err)
	}

	r.log.Info(ctx, "oauth user created", "user_id", created.ID, "provider", p.Provider)
	return created, nil
}

// afterLostRace handles a concurrent first login for the same identity: the
// winner's row is read back once. If the conflict was on the email instead,
// the account exists under another credential.
func (r *IdentityResolver) afterLostRace(ctx context.Context, p OAuthProfile) (*models.User, error) {
	user, err := r.findByIdentity(ctx, p)
	switch {
	case err == nil:
		return r.active(user)
	case errors.Is(err, common.ErrNotFound):
		return nil, fail(AccountAlreadyExists, nil)
	default:
		return nil, storageFailure("find user by oauth identity", err)
	}
}

func (r *IdentityResolver) active(u *models.User) (*models.User, error) {
	if !u.IsActive {
		return nil, fail(InvalidCredentials, nil)
	}
	return u, nil
}
