package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, first_name, last_name, oauth_provider, oauth_id,
		 email_verified, is_active, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.OAuthProvider, &u.OAuthID, &u.EmailVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrNotFound
	case dbx.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s", common.ErrAlreadyExists, dbx.ConstraintName(err))
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, args ...any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `email = $1`, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		// ids are UUIDs; anything else cannot match and would fail the cast
		return nil, common.ErrNotFound
	}
	return r.findOne(ctx, `id = $1`, id)
}

func (r *PostgresRepository) FindByOAuthIdentity(ctx context.Context, provider, providerID string) (*models.User, error) {
	return r.findOne(ctx, `oauth_provider = $1 AND oauth_id = $2`, provider, providerID)
}

// Create inserts user, assigning an ID when it has none. The timestamps are
// taken from the database.
func (r *PostgresRepository) Create(ctx context.Context, in *models.User) (*models.User, error) {
	user := *in
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query :=
		`INSERT INTO users (id, email, password_hash, first_name, last_name, oauth_provider, oauth_id, email_verified, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.OAuthProvider, user.OAuthID, user.EmailVerified, user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	return &user, nil
}

// Update writes only the fields set in upd and returns the stored row.
func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if upd.IsEmpty() {
		return r.FindByID(ctx, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}

	sets := make([]string, 0, 8)
	args := make([]any, 0, 8)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.OAuthProvider != nil {
		add("oauth_provider", *upd.OAuthProvider)
	}
	if upd.OAuthID != nil {
		add("oauth_id", *upd.OAuthID)
	}
	if upd.EmailVerified != nil {
		add("email_verified", *upd.EmailVerified)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// LinkOAuthIdentity attaches a provider identity to an account that has none.
// The condition is part of the UPDATE, so a concurrent link cannot be
// overwritten: the loser gets common.ErrAlreadyExists.
func (r *PostgresRepository) LinkOAuthIdentity(ctx context.Context, id, provider, providerID string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}

	query := `UPDATE users
		 SET oauth_provider = $1, oauth_id = $2, email_verified = TRUE, updated_at = NOW()
		 WHERE id = $3 AND oauth_provider IS NULL
		 RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, provider, providerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		// either gone or already linked; tell them apart
		if _, ferr := r.FindByID(ctx, id); ferr != nil {
			return nil, ferr
		}
		return nil, common.ErrAlreadyExists
	}
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// List returns users newest first. page is 1-based.
func (r *PostgresRepository) List(ctx context.Context, page, limit int) (*models.UserPage, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return models.NewUserPage(result, total, page, limit), nil
}
