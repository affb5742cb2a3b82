package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/openboard/server/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetOrCreateByEmail(ctx context.Context, email string) (model.User, error)
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
	SetBanned(ctx context.Context, id uuid.UUID, banned bool) error
	BindQQ(ctx context.Context, id uuid.UUID, qqID, qqName, qqAvatar string) error
	UnbindQQ(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit int) ([]model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

const userColumns = `id, email, password_hash, display_name, qq_id, qq_name, qq_avatar, role, is_banned, created_at`

func scanUser(row *sql.Row) (model.User, error) {
	var user model.User
	var idStr string
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.QQID,
		&user.QQName,
		&user.QQAvatar,
		&user.Role,
		&user.IsBanned,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, fmt.Errorf("user: %w", ErrNotFound)
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id.String()))
}

// GetByEmail retrieves a user by email
func (r *userRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetOrCreateByEmail retrieves a user by email or creates one if it doesn't
// exist. This is the only path that auto-provisions accounts.
func (r *userRepo) GetOrCreateByEmail(ctx context.Context, email string) (model.User, error) {
	query := `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return model.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return r.GetByEmail(ctx, email)
}

// SetPasswordHash replaces the stored password hash for the user.
func (r *userRepo) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id.String())
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	return nil
}

// SetBanned sets or clears the ban flag.
func (r *userRepo) SetBanned(ctx context.Context, id uuid.UUID, banned bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET is_banned = $1 WHERE id = $2`, banned, id.String())
	if err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	return nil
}

// BindQQ stores the linked third-party identity on the user row.
func (r *userRepo) BindQQ(ctx context.Context, id uuid.UUID, qqID, qqName, qqAvatar string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET qq_id = $1, qq_name = $2, qq_avatar = $3 WHERE id = $4
	`, qqID, qqName, qqAvatar, id.String())
	if err != nil {
		return fmt.Errorf("bind qq: %w", err)
	}
	return nil
}

// UnbindQQ clears the linked third-party identity.
func (r *userRepo) UnbindQQ(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET qq_id = NULL, qq_name = NULL, qq_avatar = NULL WHERE id = $1
	`, id.String())
	if err != nil {
		return fmt.Errorf("unbind qq: %w", err)
	}
	return nil
}

// List returns up to limit users, newest first.
func (r *userRepo) List(ctx context.Context, limit int) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		var idStr string
		err := rows.Scan(
			&idStr,
			&user.Email,
			&user.PasswordHash,
			&user.DisplayName,
			&user.QQID,
			&user.QQName,
			&user.QQAvatar,
			&user.Role,
			&user.IsBanned,
			&user.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		user.ID, err = uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse user ID: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
