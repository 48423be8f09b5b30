package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/core"
	applog "tally/internal/log"

	"github.com/google/uuid"
)

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if !u.Role.Valid() {
		u.Role = core.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, display_name, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.DisplayName, u.PasswordHash, string(u.Role), toMillis(u.CreatedAt))
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", mapError(err, "user"))
	}

	slog.InfoContext(ctx, "User created", applog.FieldUserID, u.ID, "role", u.Role)
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	var (
		u       core.User
		role    string
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, display_name, password_hash, role, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.DisplayName, &u.PasswordHash, &role, &created)
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", mapError(err, "user"))
	}
	u.Role = core.Role(role)
	u.CreatedAt = fromMillis(created)
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, display_name, role, created_at FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var (
			u       core.User
			role    string
			created int64
		)
		if err := rows.Scan(&u.ID, &u.DisplayName, &role, &created); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = core.Role(role)
		u.CreatedAt = fromMillis(created)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) UpdateUserDisplayName(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET display_name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update user: %w", mapError(err, "user"))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundf("user %s", id)
	}
	return nil
}

// UpdateUserPasswordHash replaces the hash only while it still equals current,
// so two concurrent changes cannot both succeed against the same old password.
func (r *SQLiteRepository) UpdateUserPasswordHash(ctx context.Context, id, current, next string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND password_hash = ?`, next, id, current)
	if err != nil {
		return fmt.Errorf("update password: %w", mapError(err, "user"))
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.InfoContext(ctx, "User password changed", applog.FieldUserID, id)
		return nil
	}
	exists, err := r.rowExists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)`, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if !exists {
		return core.NotFoundf("user %s", id)
	}
	return fmt.Errorf("password changed concurrently: %w", core.ErrConflict)
}

// DeleteUser removes the user; foreign keys cascade to categories, transactions
// and enrollments, and detach challenges the user created.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", mapError(err, "user"))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundf("user %s", id)
	}
	slog.InfoContext(ctx, "User deleted", applog.FieldUserID, id)
	return nil
}
