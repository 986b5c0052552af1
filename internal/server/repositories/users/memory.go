package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/google/uuid"
)

type identityKey struct {
	provider, id string
}

// MemoryRepository keeps users in process memory with the same uniqueness
// rules as the Postgres schema. Returned users are copies.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]*models.User
	byEmail    map[string]string
	byIdentity map[identityKey]string
	now        func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*models.User),
		byEmail:    make(map[string]string),
		byIdentity: make(map[identityKey]string),
		now:        time.Now,
	}
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *MemoryRepository) get(id string) (*models.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(r.byEmail[email])
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

func (r *MemoryRepository) FindByOAuthIdentity(_ context.Context, provider, providerID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(r.byIdentity[identityKey{provider, providerID}])
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return nil, common.ErrAlreadyExists
	}
	if user.HasOAuthIdentity() {
		if _, taken := r.byIdentity[identityKey{*user.OAuthProvider, *user.OAuthID}]; taken {
			return nil, common.ErrAlreadyExists
		}
	}

	stored := clone(user)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := r.now()
	stored.CreatedAt, stored.UpdatedAt = now, now

	r.byID[stored.ID] = stored
	r.byEmail[stored.Email] = stored.ID
	if stored.HasOAuthIdentity() {
		r.byIdentity[identityKey{*stored.OAuthProvider, *stored.OAuthID}] = stored.ID
	}

	return clone(stored), nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if upd.IsEmpty() {
		return clone(current), nil
	}

	next := clone(current)
	next.Apply(upd, r.now())

	if next.HasOAuthIdentity() {
		key := identityKey{*next.OAuthProvider, *next.OAuthID}
		if owner, taken := r.byIdentity[key]; taken && owner != id {
			return nil, common.ErrAlreadyExists
		}
	}
	if current.HasOAuthIdentity() {
		delete(r.byIdentity, identityKey{*current.OAuthProvider, *current.OAuthID})
	}
	if next.HasOAuthIdentity() {
		r.byIdentity[identityKey{*next.OAuthProvider, *next.OAuthID}] = id
	}

	r.byID[id] = next
	return clone(next), nil
}

func (r *MemoryRepository) LinkOAuthIdentity(_ context.Context, id, provider, providerID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	key := identityKey{provider, providerID}
	if _, taken := r.byIdentity[key]; taken || current.HasOAuthIdentity() {
		return nil, common.ErrAlreadyExists
	}

	verified := true
	next := clone(current)
	next.Apply(models.UserUpdate{
		OAuthProvider: &provider,
		OAuthID:       &providerID,
		EmailVerified: &verified,
	}, r.now())

	r.byID[id] = next
	r.byIdentity[key] = id
	return clone(next), nil
}

func (r *MemoryRepository) List(_ context.Context, page, limit int) (*models.UserPage, error) {
	r.mu.RLock()
	all := make([]*models.User, 0, len(r.byID))
	for _, u := range r.byID {
		all = append(all, clone(u))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	return models.NewUserPage(all[start:end], len(all), page, limit), nil
}
