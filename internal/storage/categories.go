package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tally/internal/core"
	applog "tally/internal/log"

	"github.com/google/uuid"
)

const categoryColumns = `id, user_id, name, kind, icon, created_at`

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Kind), c.Icon, toMillis(c.CreatedAt))
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", mapError(err, "category "+c.Name))
	}

	slog.InfoContext(ctx, "Category saved to SQLite",
		"id", c.ID,
		applog.FieldUserID, c.UserID,
		"name", c.Name,
		applog.FieldKind, c.Kind)
	return c, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row.Scan)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", mapError(err, "category"))
	}
	return c, nil
}

// ListCategories returns the user's categories ordered by kind then name. An empty kind lists both.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string, kind core.Kind) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE user_id = ?`
	args := []any{userID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY kind, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	cats := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// UpdateCategory saves c. A kind change only applies while no transaction
// references the category; the check and the write are one statement.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, kind = ?, icon = ?
		WHERE id = ? AND user_id = ?
		  AND (kind = ? OR NOT EXISTS (SELECT 1 FROM transactions t WHERE t.category_id = categories.id))`,
		strings.TrimSpace(c.Name), string(c.Kind), c.Icon, c.ID, c.UserID, string(c.Kind))
	if err != nil {
		return fmt.Errorf("update category: %w", mapError(err, "category "+c.Name))
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	exists, err := r.rowExists(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = ? AND user_id = ?)`, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if !exists {
		return core.NotFoundf("category %s", c.ID)
	}
	return core.InvalidField("kind", "category is used by transactions of the current kind")
}

// DeleteCategory removes the category. Transactions that referenced it keep
// existing with a NULL category (ON DELETE SET NULL).
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", mapError(err, "category"))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundf("category %s", id)
	}
	slog.InfoContext(ctx, "Category deleted", applog.FieldCategoryID, id, applog.FieldUserID, userID)
	return nil
}

func scanCategory(scan func(dest ...any) error) (core.Category, error) {
	var (
		c       core.Category
		kind    string
		created int64
	)
	if err := scan(&c.ID, &c.UserID, &c.Name, &kind, &c.Icon, &created); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.Kind(kind)
	c.CreatedAt = fromMillis(created)
	return c, nil
}

func (r *SQLiteRepository) rowExists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n == 1, nil
}
