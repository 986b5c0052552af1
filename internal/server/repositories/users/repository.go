// Package users persists user accounts. A Postgres implementation backs
// production deployments; the in-memory one serves tests and single-node
// development.
package users

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository is the persistent user store. Lookups that miss return
// common.ErrNotFound; an email or OAuth identity collision returns
// common.ErrAlreadyExists.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByOAuthIdentity(ctx context.Context, provider, providerID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	LinkOAuthIdentity(ctx context.Context, id, provider, providerID string) (*models.User, error)
	List(ctx context.Context, page, limit int) (*models.UserPage, error)
}
