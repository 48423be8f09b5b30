// Package challenge runs savings challenges: templates that partners publish
// and the enrollments users hold against them, with daily check-in streaks.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/core"
	applog "tally/internal/log"
)

// maxCheckInAttempts bounds the read-compute-write loop of CheckIn.
const maxCheckInAttempts = 3

// EnrollmentStore is the persistence the streak engine needs.
type EnrollmentStore interface {
	GetChallenge(ctx context.Context, id string) (core.Challenge, error)
	CreateEnrollment(ctx context.Context, e core.Enrollment) (core.Enrollment, error)
	GetEnrollment(ctx context.Context, userID, id string) (core.Enrollment, error)
	UpdateEnrollmentProgress(ctx context.Context, e core.Enrollment) error
	DeleteEnrollment(ctx context.Context, userID, id string) error
	ListEnrollments(ctx context.Context, userID string) ([]core.Enrollment, error)
}

type Options struct {
	// Location decides where calendar days start. Nil means time.Local.
	Location *time.Location
	// Now is the clock. Nil means time.Now.
	Now func() time.Time
	// Events receives enrollment events. Nil disables publishing.
	Events core.EventPublisher
}

// Engine implements join, check-in, leave and list for enrollments.
type Engine struct {
	store  EnrollmentStore
	loc    *time.Location
	now    func() time.Time
	events core.EventPublisher
}

func NewEngine(store EnrollmentStore, opts Options) *Engine {
	e := &Engine{store: store, loc: opts.Location, now: opts.Now, events: opts.Events}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Join enrolls userID in the challenge. Inactive challenges read as missing,
// private ones belonging to someone else are forbidden, and a second ACTIVE
// enrollment for the same pair is a conflict.
func (e *Engine) Join(ctx context.Context, userID, challengeID string) (core.Enrollment, error) {
	ch, err := e.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return core.Enrollment{}, fmt.Errorf("join challenge: %w", err)
	}
	if !ch.Active {
		return core.Enrollment{}, core.NotFoundf("challenge %s", challengeID)
	}
	if !ch.VisibleTo(userID) {
		return core.Enrollment{}, fmt.Errorf("join challenge %s: %w", challengeID, core.ErrForbidden)
	}

	now := e.now()
	en, err := e.store.CreateEnrollment(ctx, core.Enrollment{
		UserID:      userID,
		ChallengeID: ch.ID,
		Status:      core.StatusActive,
		JoinedAt:    now,
		StartDate:   now,
	})
	if err != nil {
		return core.Enrollment{}, fmt.Errorf("join challenge: %w", err)
	}
	en.JoinedAt = en.JoinedAt.UTC()
	en.StartDate = en.StartDate.UTC()
	en.Challenge = ch.Ref()

	slog.DebugContext(ctx, "Joined challenge", applog.FieldChallengeID, ch.ID, applog.FieldEnrollmentID, en.ID)
	e.publish(ctx, applog.OpJoin, core.EventEnrollmentJoined, en)
	return en, nil
}

// CheckIn records today's check-in. The write is conditional on the version
// read; losing a race re-reads and recomputes, so a concurrent same-day
// check-in surfaces as core.ErrAlreadyCheckedIn.
func (e *Engine) CheckIn(ctx context.Context, userID, enrollmentID string) (core.Enrollment, error) {
	now := e.now()

	for attempt := 1; attempt <= maxCheckInAttempts; attempt++ {
		cur, err := e.store.GetEnrollment(ctx, userID, enrollmentID)
		if err != nil {
			return core.Enrollment{}, fmt.Errorf("check in: %w", err)
		}

		duration := 0
		if cur.Challenge != nil {
			duration = cur.Challenge.DurationDays
		}
		next, err := core.ApplyCheckIn(cur, duration, now, e.loc)
		if err != nil {
			return core.Enrollment{}, fmt.Errorf("check in: %w", err)
		}

		err = e.store.UpdateEnrollmentProgress(ctx, next)
		if errors.Is(err, core.ErrVersionMismatch) {
			slog.DebugContext(ctx, "Check-in lost a concurrent update, retrying",
				applog.FieldEnrollmentID, enrollmentID,
				"attempt", attempt)
			continue
		}
		if err != nil {
			return core.Enrollment{}, fmt.Errorf("check in: %w", err)
		}
		next.Version++

		slog.DebugContext(ctx, "Check-in progress",
			applog.FieldEnrollmentID, next.ID,
			"current_streak", next.CurrentStreak,
			"completed_days", next.CompletedDays,
			"status", next.Status)
		e.publish(ctx, applog.OpCheckIn, core.EventEnrollmentCheckedIn, next)
		if next.Status == core.StatusCompleted {
			e.publish(ctx, applog.OpCheckIn, core.EventEnrollmentCompleted, next)
		}
		return next, nil
	}

	return core.Enrollment{}, fmt.Errorf("check in %s: %w: too many concurrent updates", enrollmentID, core.ErrConflict)
}

// Leave deletes the user's enrollment regardless of its status.
func (e *Engine) Leave(ctx context.Context, userID, enrollmentID string) error {
	if err := e.store.DeleteEnrollment(ctx, userID, enrollmentID); err != nil {
		return fmt.Errorf("leave challenge: %w", err)
	}
	e.publish(ctx, applog.OpLeave, core.EventEnrollmentLeft, core.Enrollment{ID: enrollmentID, UserID: userID})
	return nil
}

// ListMine returns the user's enrollments, newest first.
func (e *Engine) ListMine(ctx context.Context, userID string) ([]core.Enrollment, error) {
	list, err := e.store.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return list, nil
}

// publish logs the committed change and hands its event to the publisher.
// Publish failures are logged only.
func (e *Engine) publish(ctx context.Context, op string, typ core.EventType, en core.Enrollment) {
	sl := applog.NewStructuredLogger(applog.FromContext(ctx).WithComponent(applog.ComponentChallenge))
	sl.LogMutation(ctx, op, string(typ), en.UserID, en.ID)

	if e.events == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping event", applog.FieldEventType, typ)
		return
	}
	ev := core.Event{
		Type:       typ,
		UserID:     en.UserID,
		EntityID:   en.ID,
		OccurredAt: e.now().UTC(),
	}
	if typ != core.EventEnrollmentLeft {
		ev.Enrollment = &en
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		sl.LogError(ctx, "Failed to publish enrollment event", err, applog.OpPublish,
			applog.NewFields().WithEventType(string(typ)).WithEntity(en.UserID, en.ID))
	}
}
