package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps sessions in a mutex-guarded map.
type MemoryRepository struct {
	mu     sync.Mutex
	byHash map[string]*models.Session
	now    func() time.Time
}

func NewMemoryRepository(opts ...Option) *MemoryRepository {
	o := buildOptions(opts)
	return &MemoryRepository{byHash: make(map[string]*models.Session), now: o.now}
}

// insert must be called with mu held.
func (r *MemoryRepository) insert(userID, token string, expiresAt, now time.Time) (*models.Session, error) {
	if !expiresAt.After(now) {
		return nil, common.ErrInvalidExpiry
	}
	hash := HashToken(token)
	if _, exists := r.byHash[hash]; exists {
		return nil, common.ErrAlreadyExists
	}
	s := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	r.byHash[hash] = s
	c := *s
	return &c, nil
}

func (r *MemoryRepository) Create(_ context.Context, userID, token string, expiresAt time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(userID, token, expiresAt, r.now())
}

func (r *MemoryRepository) FindValid(_ context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byHash[HashToken(token)]
	if !ok || !s.IsValid(r.now()) {
		return nil, common.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *MemoryRepository) Revoke(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byHash[HashToken(token)]; ok && s.UserID == userID {
		s.Revoked = true
	}
	return nil
}

func (r *MemoryRepository) Rotate(_ context.Context, userID, oldToken, newToken string, newExpiresAt time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	old, ok := r.byHash[HashToken(oldToken)]
	if !ok || old.UserID != userID || !old.IsValid(now) {
		return nil, common.ErrNotFound
	}

	next, err := r.insert(userID, newToken, newExpiresAt, now)
	if err != nil {
		return nil, err
	}
	old.Revoked = true
	return next, nil
}

func (r *MemoryRepository) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, s := range r.byHash {
		if !s.ExpiresAt.After(before) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}
