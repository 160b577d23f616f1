package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/metflix/server/internal/model"
)

// UserRepo defines the interface for user directory operations
type UserRepo interface {
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, u model.NewUser) (model.User, error)
	ResetPassword(ctx context.Context, email, passwordHash string) (model.User, error)
	UpsertFederated(ctx context.Context, name, email string) (model.User, error)
	// SetBlocked is used by administrative tooling; no HTTP route exposes it.
	SetBlocked(ctx context.Context, email string, blocked bool) error
}

const uniqueViolation = "23505"

const userColumns = `id, email, username, password_hash, role, is_blocked, created_at, updated_at`

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a Postgres-backed UserRepo
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, ErrUserNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail retrieves a user by exact email
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create inserts a new user. The unique index on email turns a lost
// check-then-create race into ErrUserExists.
func (r *userRepo) Create(ctx context.Context, u model.NewUser) (model.User, error) {
	role := u.Role
	if !role.Valid() {
		role = model.RoleUser
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		u.Email, u.Username, u.PasswordHash, string(role),
	)
	user, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return model.User{}, ErrUserExists
		}
		return model.User{}, err
	}
	return user, nil
}

// ResetPassword replaces the password hash of the user with the given email
func (r *userRepo) ResetPassword(ctx context.Context, email, passwordHash string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE email = $1
		RETURNING `+userColumns,
		email, passwordHash,
	)
	return scanUser(row)
}

// UpsertFederated returns the user with the given email, creating a
// password-less USER account if none exists
func (r *userRepo) UpsertFederated(ctx context.Context, name, email string) (model.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, username, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`, email, name, string(model.RoleUser))
	if err != nil {
		return model.User{}, fmt.Errorf("failed to upsert user: %w", err)
	}
	return r.GetByEmail(ctx, email)
}

// SetBlocked sets the blocked flag of the user with the given email
func (r *userRepo) SetBlocked(ctx context.Context, email string, blocked bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_blocked = $2, updated_at = now() WHERE email = $1
	`, email, blocked)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var user model.User
	var idStr, role string
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&role,
		&user.IsBlocked,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	user.Role = model.Role(role)
	return user, nil
}
