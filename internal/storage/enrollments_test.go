package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"tally/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countActiveEnrollments(t *testing.T, repo *SQLiteRepository, userID, challengeID string) int {
	t.Helper()
	var n int
	err := repo.db.QueryRow(
		`SELECT COUNT(*) FROM enrollments WHERE user_id = ? AND challenge_id = ? AND status = 'ACTIVE'`,
		userID, challengeID).Scan(&n)
	require.NoError(t, err)
	return n
}

func createTestChallenge(t *testing.T, repo *SQLiteRepository, days int) core.Challenge {
	t.Helper()
	c, err := repo.CreateChallenge(context.Background(), core.Challenge{
		Title: "No milk tea", Kind: core.ChallengeNoSpend, DurationDays: days, Active: true, Public: true,
	})
	require.NoError(t, err)
	return c
}

func TestCreateEnrollment_OneActivePerPair(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()
	u := createTestUser(t, repo, "Alice")
	ch := createTestChallenge(t, repo, 3)
	now := time.Now()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateEnrollment(ctx, core.Enrollment{
				UserID: u.ID, ChallengeID: ch.ID, Status: core.StatusActive, JoinedAt: now, StartDate: now,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, core.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, conflicts)

	assert.Equal(t, 1, countActiveEnrollments(t, repo, u.ID, ch.ID))
}

func TestCreateEnrollment_HistoryDoesNotBlockRejoin(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()
	u := createTestUser(t, repo, "Alice")
	ch := createTestChallenge(t, repo, 1)
	now := time.Now()

	e, err := repo.CreateEnrollment(ctx, core.Enrollment{
		UserID: u.ID, ChallengeID: ch.ID, Status: core.StatusActive, JoinedAt: now, StartDate: now,
	})
	require.NoError(t, err)

	day := now.Truncate(24 * time.Hour)
	e.Status = core.StatusCompleted
	e.CurrentStreak, e.LongestStreak, e.CompletedDays = 1, 1, 1
	e.LastCheckInDate = &day
	require.NoError(t, repo.UpdateEnrollmentProgress(ctx, e))

	_, err = repo.CreateEnrollment(ctx, core.Enrollment{
		UserID: u.ID, ChallengeID: ch.ID, Status: core.StatusActive, JoinedAt: now.Add(time.Minute), StartDate: now,
	})
	require.NoError(t, err, "a completed enrollment must not block a new active one")

	list, err := repo.ListEnrollments(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, core.StatusActive, list[0].Status, "newest first")
	assert.Equal(t, core.StatusCompleted, list[1].Status)
	require.NotNil(t, list[0].Challenge)
	assert.Equal(t, "No milk tea", list[0].Challenge.Title)
	assert.Equal(t, 1, list[0].Challenge.DurationDays)
}

func TestUpdateEnrollmentProgress_VersionCheck(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()
	u := createTestUser(t, repo, "Alice")
	ch := createTestChallenge(t, repo, 30)
	now := time.Now()

	e, err := repo.CreateEnrollment(ctx, core.Enrollment{
		UserID: u.ID, ChallengeID: ch.ID, Status: core.StatusActive, JoinedAt: now, StartDate: now,
	})
	require.NoError(t, err)

	stale := e
	e.CurrentStreak, e.LongestStreak, e.CompletedDays = 1, 1, 1
	require.NoError(t, repo.UpdateEnrollmentProgress(ctx, e))

	stale.CurrentStreak, stale.LongestStreak, stale.CompletedDays = 5, 5, 5
	err = repo.UpdateEnrollmentProgress(ctx, stale)
	assert.ErrorIs(t, err, core.ErrVersionMismatch)

	got, err := repo.GetEnrollment(ctx, u.ID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CompletedDays)
	assert.Equal(t, int64(1), got.Version)
}

func TestEnrollment_OwnershipIsNotFound(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()
	alice := createTestUser(t, repo, "Alice")
	bob := createTestUser(t, repo, "Bob")
	ch := createTestChallenge(t, repo, 30)
	now := time.Now()

	e, err := repo.CreateEnrollment(ctx, core.Enrollment{
		UserID: alice.ID, ChallengeID: ch.ID, Status: core.StatusActive, JoinedAt: now, StartDate: now,
	})
	require.NoError(t, err)

	_, err = repo.GetEnrollment(ctx, bob.ID, e.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteEnrollment(ctx, bob.ID, e.ID), core.ErrNotFound)

	require.NoError(t, repo.DeleteEnrollment(ctx, alice.ID, e.ID))
	assert.ErrorIs(t, repo.DeleteEnrollment(ctx, alice.ID, e.ID), core.ErrNotFound)
}
