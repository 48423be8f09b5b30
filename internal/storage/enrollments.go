package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"tally/internal/core"
	applog "tally/internal/log"

	"github.com/google/uuid"
)

const enrollmentSelect = `
SELECT e.id, e.user_id, e.challenge_id, e.status, e.joined_at, e.start_date, e.last_check_in_date,
       e.current_streak, e.longest_streak, e.completed_days, e.version,
       c.title, c.description, c.kind, c.duration_days, c.target_amount_per_day
FROM enrollments e
JOIN challenges c ON c.id = e.challenge_id`

// CreateEnrollment inserts a new enrollment. A second ACTIVE row for the same
// (user, challenge) violates ux_enrollments_active and surfaces as core.ErrConflict.
func (r *SQLiteRepository) CreateEnrollment(ctx context.Context, e core.Enrollment) (core.Enrollment, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, user_id, challenge_id, status, joined_at, start_date, last_check_in_date,
		                         current_streak, longest_streak, completed_days, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		e.ID, e.UserID, e.ChallengeID, string(e.Status), toMillis(e.JoinedAt), toMillis(e.StartDate),
		nullMillis(e.LastCheckInDate), e.CurrentStreak, e.LongestStreak, e.CompletedDays)
	if err != nil {
		return core.Enrollment{}, fmt.Errorf("create enrollment: %w", mapError(err, "active enrollment"))
	}
	e.Version = 0

	slog.InfoContext(ctx, "Enrollment created",
		"id", e.ID,
		applog.FieldUserID, e.UserID,
		applog.FieldChallengeID, e.ChallengeID)
	return e, nil
}

// GetEnrollment loads an enrollment owned by userID together with its challenge.
func (r *SQLiteRepository) GetEnrollment(ctx context.Context, userID, id string) (core.Enrollment, error) {
	row := r.db.QueryRowContext(ctx, enrollmentSelect+` WHERE e.id = ? AND e.user_id = ?`, id, userID)
	e, err := scanEnrollment(row.Scan)
	if err != nil {
		return core.Enrollment{}, fmt.Errorf("get enrollment: %w", mapError(err, "enrollment"))
	}
	return e, nil
}

// UpdateEnrollmentProgress writes the check-in counters of e if the stored
// version still equals e.Version, bumping it by one. A lost race returns
// core.ErrVersionMismatch.
func (r *SQLiteRepository) UpdateEnrollmentProgress(ctx context.Context, e core.Enrollment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE enrollments
		SET status = ?, last_check_in_date = ?, current_streak = ?, longest_streak = ?,
		    completed_days = ?, version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?`,
		string(e.Status), nullMillis(e.LastCheckInDate), e.CurrentStreak, e.LongestStreak,
		e.CompletedDays, e.ID, e.UserID, e.Version)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", mapError(err, "enrollment"))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update enrollment %s: %w", e.ID, core.ErrVersionMismatch)
	}
	return nil
}

func (r *SQLiteRepository) DeleteEnrollment(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundf("enrollment %s", id)
	}
	return nil
}

// ListEnrollments returns the user's enrollments, most recently joined first.
func (r *SQLiteRepository) ListEnrollments(ctx context.Context, userID string) ([]core.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx,
		enrollmentSelect+` WHERE e.user_id = ? ORDER BY e.joined_at DESC, e.rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	out := []core.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEnrollment(scan func(dest ...any) error) (core.Enrollment, error) {
	var (
		e               core.Enrollment
		status          string
		joined, started int64
		lastCheckIn     sql.NullInt64
		ch              core.ChallengeRef
		kind            string
		target          sql.NullInt64
	)
	err := scan(&e.ID, &e.UserID, &e.ChallengeID, &status, &joined, &started, &lastCheckIn,
		&e.CurrentStreak, &e.LongestStreak, &e.CompletedDays, &e.Version,
		&ch.Title, &ch.Description, &kind, &ch.DurationDays, &target)
	if err != nil {
		return core.Enrollment{}, err
	}
	e.Status = core.EnrollmentStatus(status)
	e.JoinedAt = fromMillis(joined)
	e.StartDate = fromMillis(started)
	e.LastCheckInDate = timePtr(lastCheckIn)
	ch.ID = e.ChallengeID
	ch.Kind = core.ChallengeKind(kind)
	ch.TargetAmountPerDay = int64Ptr(target)
	e.Challenge = &ch
	return e, nil
}
