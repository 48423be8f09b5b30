package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func createTestUser(t *testing.T, repo *SQLiteRepository, name string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), core.User{DisplayName: name, PasswordHash: "x"})
	require.NoError(t, err)
	return u
}

func TestNewSQLiteRepository_MigratesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "tally.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Ping(context.Background()))

	version, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	// Reopening an up-to-date database is a no-op.
	again, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestUsers_GetAndList(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()

	alice := createTestUser(t, repo, "Alice")
	_, err := repo.CreateUser(ctx, core.User{DisplayName: "Root", PasswordHash: "h", Role: core.RoleAdmin})
	require.NoError(t, err)

	got, err := repo.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, core.RoleUser, got.Role)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = repo.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = repo.CreateUser(ctx, core.User{ID: alice.ID, DisplayName: "Dup", PasswordHash: "h"})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestDeleteUser_Cascades(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()

	owner := createTestUser(t, repo, "Owner")
	other := createTestUser(t, repo, "Other")

	cat, err := repo.CreateCategory(ctx, core.Category{UserID: owner.ID, Name: "Food", Kind: core.KindExpense})
	require.NoError(t, err)
	_, err = repo.CreateTransaction(ctx, core.Transaction{
		UserID: owner.ID, CategoryID: &cat.ID, Kind: core.KindExpense, Amount: 1000, OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	ch, err := repo.CreateChallenge(ctx, core.Challenge{
		Title: "Partner challenge", Kind: core.ChallengeNoSpend, DurationDays: 7,
		Active: true, Public: true, CreatedBy: owner.ID,
	})
	require.NoError(t, err)

	now := time.Now()
	_, err = repo.CreateEnrollment(ctx, core.Enrollment{
		UserID: owner.ID, ChallengeID: ch.ID, Status: core.StatusActive, JoinedAt: now, StartDate: now,
	})
	require.NoError(t, err)
	otherEnrollment, err := repo.CreateEnrollment(ctx, core.Enrollment{
		UserID: other.ID, ChallengeID: ch.ID, Status: core.StatusActive, JoinedAt: now, StartDate: now,
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteUser(ctx, owner.ID))

	cats, err := repo.ListCategories(ctx, owner.ID, "")
	require.NoError(t, err)
	assert.Empty(t, cats)

	txs, err := repo.ListTransactions(ctx, owner.ID, core.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)

	mine, err := repo.ListEnrollments(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)

	// The challenge outlives its creator, and so do other users' enrollments.
	survivor, err := repo.GetChallenge(ctx, ch.ID)
	require.NoError(t, err)
	assert.Empty(t, survivor.CreatedBy)

	kept, err := repo.GetEnrollment(ctx, other.ID, otherEnrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, kept.Status)

	assert.ErrorIs(t, repo.DeleteUser(ctx, owner.ID), core.ErrNotFound)
}
