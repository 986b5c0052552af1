package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "credkeeper:session:"

// Each session is a hash at prefix+digest that expires with the session
// (PEXPIREAT), so expired sessions disappear without a janitor. Every write
// is a Lua script and runs atomically on the server.
var (
	createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'user_id', ARGV[2], 'expires_at', ARGV[3], 'created_at', ARGV[4], 'revoked', '0')
redis.call('PEXPIREAT', KEYS[1], ARGV[3])
return 1
`)

	revokeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'user_id') == ARGV[1] then
  redis.call('HSET', KEYS[1], 'revoked', '1')
  return 1
end
return 0
`)

	// KEYS: old, new. ARGV: user_id, now_ms, new_id, new_expires_ms.
	rotateScript = redis.NewScript(`
local s = redis.call('HMGET', KEYS[1], 'user_id', 'revoked', 'expires_at')
local exp = tonumber(s[3])
if s[1] ~= ARGV[1] or s[2] ~= '0' or not exp or exp <= tonumber(ARGV[2]) then
  return 0
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return -1
end
redis.call('HSET', KEYS[1], 'revoked', '1')
redis.call('HSET', KEYS[2], 'id', ARGV[3], 'user_id', ARGV[1], 'expires_at', ARGV[4], 'created_at', ARGV[2], 'revoked', '0')
redis.call('PEXPIREAT', KEYS[2], ARGV[4])
return 1
`)
)

// RedisRepository implements Repository on Redis. The old and new keys of a
// rotation must live on one node, so Redis Cluster is not supported.
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRepository(client redis.UniversalClient, opts ...Option) *RedisRepository {
	o := buildOptions(opts)
	return &RedisRepository{client: client, prefix: defaultKeyPrefix, now: o.now}
}

func (r *RedisRepository) key(token string) string {
	return r.prefix + HashToken(token)
}

func (r *RedisRepository) Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.Session, error) {
	now := r.now()
	if !expiresAt.After(now) {
		return nil, common.ErrInvalidExpiry
	}

	s := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}

	created, err := createScript.Run(ctx, r.client, []string{r.key(token)},
		s.ID, userID, expiresAt.UnixMilli(), now.UnixMilli()).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	if created == 0 {
		return nil, common.ErrAlreadyExists
	}
	return s, nil
}

func (r *RedisRepository) FindValid(ctx context.Context, token string) (*models.Session, error) {
	data, err := r.client.HGetAll(ctx, r.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(data) == 0 {
		return nil, common.ErrNotFound
	}

	s, err := parseSession(HashToken(token), data)
	if err != nil {
		return nil, err
	}
	if !s.IsValid(r.now()) {
		return nil, common.ErrNotFound
	}
	return s, nil
}

func parseSession(hash string, data map[string]string) (*models.Session, error) {
	expiresAt, err := strconv.ParseInt(data["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session expires_at: %w", err)
	}
	createdAt, err := strconv.ParseInt(data["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session created_at: %w", err)
	}
	return &models.Session{
		ID:        data["id"],
		UserID:    data["user_id"],
		TokenHash: hash,
		ExpiresAt: time.UnixMilli(expiresAt),
		CreatedAt: time.UnixMilli(createdAt),
		Revoked:   data["revoked"] == "1",
	}, nil
}

func (r *RedisRepository) Revoke(ctx context.Context, userID, token string) error {
	if err := revokeScript.Run(ctx, r.client, []string{r.key(token)}, userID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (r *RedisRepository) Rotate(ctx context.Context, userID, oldToken, newToken string, newExpiresAt time.Time) (*models.Session, error) {
	now := r.now()
	if !newExpiresAt.After(now) {
		return nil, common.ErrInvalidExpiry
	}

	next := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: HashToken(newToken),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.UnixMilli(now.UnixMilli()),
	}

	res, err := rotateScript.Run(ctx, r.client, []string{r.key(oldToken), r.key(newToken)},
		userID, now.UnixMilli(), next.ID, newExpiresAt.UnixMilli()).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	switch res {
	case 1:
		return next, nil
	case -1:
		return nil, common.ErrAlreadyExists
	default:
		return nil, common.ErrNotFound
	}
}

// PurgeExpired is a no-op: Redis drops each session key at its expiry.
func (r *RedisRepository) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
