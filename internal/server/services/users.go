package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

const (
	DefaultPage      = 1
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// ProfileUpdate holds the self-editable profile fields; nil means unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
}

// UserService serves profile reads and edits for authenticated callers.
type UserService struct {
	users UserStore
	log   logging.Logger
}

func NewUserService(users UserStore, log logging.Logger) *UserService {
	return &UserService{users: users, log: log.With("module", "users")}
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupFailure(err)
	}
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error) {
	u, err := s.users.Update(ctx, userID, models.UserUpdate{
		FirstName: upd.FirstName,
		LastName:  upd.LastName,
	})
	if err != nil {
		return nil, lookupFailure(err)
	}
	s.log.Info(ctx, "profile updated", "user_id", userID)
	return u, nil
}

// ListUsers returns one page, newest first. Out-of-range paging arguments
// are clamped rather than rejected.
func (s *UserService) ListUsers(ctx context.Context, page, limit int) (*models.UserPage, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	p, err := s.users.List(ctx, page, limit)
	if err != nil {
		return nil, storageFailure("list users", err)
	}
	return p, nil
}

func lookupFailure(err error) *AuthError {
	if errors.Is(err, common.ErrNotFound) {
		return fail(NotFound, nil)
	}
	return storageFailure("user lookup", err)
}
