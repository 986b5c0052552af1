package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx). Rotate opens its own transaction when bound to a
// *sql.DB and joins the caller's otherwise.
type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX, opts ...Option) *PostgresRepository {
	o := buildOptions(opts)
	return &PostgresRepository{db: db, now: o.now}
}

func (r *PostgresRepository) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if db, ok := r.db.(*sql.DB); ok {
		return dbx.WithTx(ctx, db, nil, fn)
	}
	return fn(ctx, r.db)
}

func insertSession(ctx context.Context, db dbx.DBTX, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := db.ExecContext(ctx, query, s.ID, s.UserID, s.TokenHash, s.ExpiresAt, s.CreatedAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) newSession(userID, token string, expiresAt time.Time) (*models.Session, error) {
	now := r.now()
	if !expiresAt.After(now) {
		return nil, common.ErrInvalidExpiry
	}
	return &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.Session, error) {
	s, err := r.newSession(userID, token, expiresAt)
	if err != nil {
		return nil, err
	}
	if err := insertSession(ctx, r.db, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) FindValid(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked
		FROM sessions
		WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2
	`
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, HashToken(token), r.now()).
		Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt, &s.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, userID, token string) error {
	if _, err := uuid.Parse(userID); err != nil {
		return nil
	}
	query := `
		UPDATE sessions SET revoked = TRUE
		WHERE token_hash = $1 AND user_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, HashToken(token), userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Rotate relies on the row lock taken by the conditional UPDATE: a
// concurrent rotation of the same token blocks until the winner commits and
// then matches zero rows.
func (r *PostgresRepository) Rotate(ctx context.Context, userID, oldToken, newToken string, newExpiresAt time.Time) (*models.Session, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, common.ErrNotFound
	}
	next, err := r.newSession(userID, newToken, newExpiresAt)
	if err != nil {
		return nil, err
	}

	err = r.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			UPDATE sessions SET revoked = TRUE
			WHERE token_hash = $1 AND user_id = $2 AND revoked = FALSE AND expires_at > $3
		`
		res, err := tx.ExecContext(ctx, query, HashToken(oldToken), userID, next.CreatedAt)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n != 1 {
			return common.ErrNotFound
		}
		return insertSession(ctx, tx, next)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (r *PostgresRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
