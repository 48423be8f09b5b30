package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/core"
	applog "tally/internal/log"

	"github.com/google/uuid"
)

const challengeColumns = `id, title, description, kind, duration_days, target_amount_per_day,
	is_active, is_public, created_by, start_date, created_at, updated_at`

func (r *SQLiteRepository) CreateChallenge(ctx context.Context, c core.Challenge) (core.Challenge, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.ExecContext(ctx, `INSERT INTO challenges (`+challengeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Description, string(c.Kind), c.DurationDays, nullInt64(c.TargetAmountPerDay),
		boolInt(c.Active), boolInt(c.Public), nullString(&c.CreatedBy), nullMillis(c.StartDate),
		toMillis(c.CreatedAt), toMillis(c.UpdatedAt))
	if err != nil {
		return core.Challenge{}, fmt.Errorf("create challenge: %w", mapError(err, "challenge"))
	}

	slog.InfoContext(ctx, "Challenge saved to SQLite",
		"id", c.ID,
		"title", c.Title,
		applog.FieldKind, c.Kind,
		"duration_days", c.DurationDays)
	return c, nil
}

func (r *SQLiteRepository) GetChallenge(ctx context.Context, id string) (core.Challenge, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	c, err := scanChallenge(row.Scan)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("get challenge: %w", mapError(err, "challenge"))
	}
	return c, nil
}

// UpdateChallenge overwrites the template's editable fields. Enrollments are untouched.
func (r *SQLiteRepository) UpdateChallenge(ctx context.Context, c core.Challenge) (core.Challenge, error) {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE challenges
		SET title = ?, description = ?, kind = ?, duration_days = ?, target_amount_per_day = ?,
		    is_active = ?, is_public = ?, start_date = ?, updated_at = ?
		WHERE id = ?`,
		c.Title, c.Description, string(c.Kind), c.DurationDays, nullInt64(c.TargetAmountPerDay),
		boolInt(c.Active), boolInt(c.Public), nullMillis(c.StartDate), toMillis(c.UpdatedAt),
		c.ID)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("update challenge: %w", mapError(err, "challenge"))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Challenge{}, core.NotFoundf("challenge %s", c.ID)
	}
	return c, nil
}

// ListVisibleChallenges returns active challenges that are public or owned by userID, newest first.
func (r *SQLiteRepository) ListVisibleChallenges(ctx context.Context, userID string) ([]core.Challenge, error) {
	return r.queryChallenges(ctx, `SELECT `+challengeColumns+` FROM challenges
		WHERE is_active = 1 AND (is_public = 1 OR created_by = ?)
		ORDER BY created_at DESC, rowid DESC`, userID)
}

func (r *SQLiteRepository) ListChallengesByCreator(ctx context.Context, userID string) ([]core.Challenge, error) {
	return r.queryChallenges(ctx, `SELECT `+challengeColumns+` FROM challenges
		WHERE created_by = ? ORDER BY created_at DESC, rowid DESC`, userID)
}

func (r *SQLiteRepository) ListAllChallenges(ctx context.Context) ([]core.Challenge, error) {
	return r.queryChallenges(ctx, `SELECT `+challengeColumns+` FROM challenges ORDER BY created_at DESC, rowid DESC`)
}

func (r *SQLiteRepository) ChallengeTitleExists(ctx context.Context, title string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM challenges WHERE title = ?`, title).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count challenges by title: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) queryChallenges(ctx context.Context, query string, args ...any) ([]core.Challenge, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	out := []core.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChallenge(scan func(dest ...any) error) (core.Challenge, error) {
	var (
		c                core.Challenge
		kind             string
		target           sql.NullInt64
		active, public   int
		createdBy        sql.NullString
		startDate        sql.NullInt64
		created, updated int64
	)
	err := scan(&c.ID, &c.Title, &c.Description, &kind, &c.DurationDays, &target,
		&active, &public, &createdBy, &startDate, &created, &updated)
	if err != nil {
		return core.Challenge{}, err
	}
	c.Kind = core.ChallengeKind(kind)
	c.TargetAmountPerDay = int64Ptr(target)
	c.Active = active != 0
	c.Public = public != 0
	c.CreatedBy = createdBy.String
	c.StartDate = timePtr(startDate)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return c, nil
}
