package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/users"
	"github.com/redis/go-redis/v9"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Options selects and addresses the storage backends.
type Options struct {
	StorageBackend string // users: postgres | memory
	SessionBackend string // sessions: postgres | redis | memory
	DSN            string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
}

// Stores is the opened pair of stores plus whatever connections back them.
type Stores struct {
	Users    users.Repository
	Sessions sessions.Repository
	DB       *sql.DB
	Redis    *redis.Client

	closers []func() error
}

// Close releases the underlying connections.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// Ping checks every remote backend. It is used by the health endpoints.
func (s *Stores) Ping(ctx context.Context) error {
	if s.DB != nil {
		if err := s.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

var (
	sqlOpen = sql.Open

	newRedisClient = func(opts *redis.Options) *redis.Client { return redis.NewClient(opts) }
)

// checkBackends rejects pairings that cannot work: Postgres sessions
// reference users(id), so they need the users in the same database.
func checkBackends(opts Options) error {
	if opts.SessionBackend == BackendPostgres && opts.StorageBackend != BackendPostgres {
		return fmt.Errorf("session backend %q requires storage backend %q, got %q",
			BackendPostgres, BackendPostgres, opts.StorageBackend)
	}
	return nil
}

// Open connects the configured backends, running migrations when Postgres
// is in use. On error everything opened so far is closed.
func Open(ctx context.Context, opts Options, log logging.Logger) (_ *Stores, err error) {
	if err := checkBackends(opts); err != nil {
		return nil, err
	}

	st := &Stores{}
	defer func() {
		if err != nil {
			_ = st.Close()
		}
	}()

	needPG := opts.StorageBackend == BackendPostgres || opts.SessionBackend == BackendPostgres
	manager := NewPostgresRepositoryManager()

	if needPG {
		if opts.DSN == "" {
			return nil, errors.New("postgres backend selected but no DSN configured")
		}
		db, err := sqlOpen("pgx", opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("error opening database: %w", err)
		}
		st.DB = db
		st.closers = append(st.closers, db.Close)

		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		if err := manager.RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("error running migrations: %w", err)
		}
		log.Info(ctx, "postgres ready, migrations applied")
	}

	switch opts.StorageBackend {
	case BackendPostgres:
		st.Users = manager.Users(st.DB)
	case BackendMemory:
		st.Users = users.NewMemoryRepository()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.StorageBackend)
	}

	switch opts.SessionBackend {
	case BackendPostgres:
		st.Sessions = manager.Sessions(st.DB)
	case BackendRedis:
		client := newRedisClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		st.Redis = client
		st.closers = append(st.closers, client.Close)

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping Redis: %w", err)
		}
		st.Sessions = sessions.NewRedisRepository(client)
		log.Info(ctx, "redis session store ready", "addr", opts.RedisAddr)
	case BackendMemory:
		st.Sessions = sessions.NewMemoryRepository()
	default:
		return nil, fmt.Errorf("unknown session backend %q", opts.SessionBackend)
	}

	log.Info(ctx, "stores opened", "users", opts.StorageBackend, "sessions", opts.SessionBackend)
	return st, nil
}
