package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tally/internal/challenge"
	"tally/internal/core"
	"tally/internal/ledger"
	applog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv   *Server
	repo  *storage.SQLiteRepository
	clock *time.Time
	alice core.User
	bob   core.User
	admin core.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	env := &testEnv{repo: repo}
	env.alice, err = repo.CreateUser(ctx, core.User{DisplayName: "Alice", PasswordHash: "x"})
	require.NoError(t, err)
	env.bob, err = repo.CreateUser(ctx, core.User{DisplayName: "Bob", PasswordHash: "x"})
	require.NoError(t, err)
	env.admin, err = repo.CreateUser(ctx, core.User{DisplayName: "Root", PasswordHash: "x", Role: core.RoleAdmin})
	require.NoError(t, err)

	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	env.clock = &now

	views := ledger.NewEngine(repo, ledger.Options{CacheSize: 100, CacheTTL: time.Minute})
	logger := applog.New(applog.Config{Output: io.Discard})
	env.srv = NewServer(":0", Deps{
		Profiles:     services.NewProfileService(repo, views, nil),
		Categories:   services.NewCategoryService(repo, views, nil),
		Transactions: services.NewTransactionService(repo, views, nil),
		Ledger:       views,
		Enrollments: challenge.NewEngine(repo, challenge.Options{
			Location: time.UTC,
			Now:      func() time.Time { return *env.clock },
		}),
		Catalog: challenge.NewCatalog(repo),
		Ready:   repo.Ping,
	}, Options{Location: time.UTC, RateLimitPerMinute: 1000, Logger: logger})
	t.Cleanup(func() { env.srv.limiter.Stop() })
	return env
}

func (e *testEnv) do(t *testing.T, user core.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rdr = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			rdr = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	if user.ID != "" {
		req.Header.Set("X-User-ID", user.ID)
		req.Header.Set("X-User-Role", string(user.Role))
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := env.do(t, core.User{}, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestReady_Unavailable(t *testing.T) {
	env := newTestEnv(t)
	env.srv.deps.Ready = func(context.Context) error { return errors.New("db gone") }
	rec := env.do(t, core.User{}, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIdentityRequired(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, core.User{}, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[errorBody](t, rec).Error)

	rec = env.do(t, env.alice, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[core.User](t, rec)
	assert.Equal(t, "Alice", me.DisplayName)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestLedgerFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.alice, http.MethodPost, "/api/categories", map[string]string{"name": "Food", "kind": "expense"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	food := decode[core.Category](t, rec)

	rec = env.do(t, env.alice, http.MethodPost, "/api/categories", map[string]string{"name": " Food ", "kind": "EXPENSE"})
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate name and kind")

	rec = env.do(t, env.alice, http.MethodPost, "/api/transactions", map[string]any{
		"kind": "income", "amount": 500000, "occurredAt": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, env.alice, http.MethodPost, "/api/transactions", map[string]any{
		"kind": "expense", "amount": "200,000", "occurredAt": "2024-03-02T12:00:00Z",
		"categoryId": food.ID, "note": "Groceries",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	groceries := decode[core.Transaction](t, rec)
	require.NotNil(t, groceries.Category)
	assert.Equal(t, "Food", groceries.Category.Name)

	rec = env.do(t, env.alice, http.MethodGet, "/api/dashboard/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[core.Summary](t, rec)
	assert.Equal(t, int64(500000), sum.TotalIncome)
	assert.Equal(t, int64(200000), sum.TotalExpense)
	assert.Equal(t, int64(300000), sum.CurrentBalance)
	assert.Len(t, sum.Recent, 2)

	for _, path := range []string{"/api/dashboard/breakdown", "/api/reports/expense-breakdown"} {
		rec = env.do(t, env.alice, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		rows := decode[[]core.CategoryTotal](t, rec)
		require.Len(t, rows, 1, path)
		assert.Equal(t, int64(200000), rows[0].Total)
	}

	rec = env.do(t, env.alice, http.MethodGet, "/api/transactions?kind=expense&q=GROC&from=2024-03-02&to=2024-03-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]core.Transaction](t, rec)
	require.Len(t, list, 1, "to is end of day for a bare date")
	assert.Equal(t, groceries.ID, list[0].ID)

	// Clearing the category with an explicit null, then the breakdown drops it.
	rec = env.do(t, env.alice, http.MethodPatch, "/api/transactions/"+groceries.ID, `{"categoryId": null, "amount": 250000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[core.Transaction](t, rec)
	assert.Nil(t, updated.CategoryID)
	assert.Equal(t, int64(250000), updated.Amount)

	rec = env.do(t, env.alice, http.MethodGet, "/api/dashboard/summary", nil)
	assert.Equal(t, int64(250000), decode[core.Summary](t, rec).TotalExpense, "mutation invalidates the cached summary")

	rec = env.do(t, env.alice, http.MethodGet, "/api/dashboard/breakdown", nil)
	assert.Empty(t, decode[[]core.CategoryTotal](t, rec))

	rec = env.do(t, env.bob, http.MethodGet, "/api/transactions/"+groceries.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users see nothing")

	rec = env.do(t, env.alice, http.MethodDelete, "/api/transactions/"+groceries.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, env.alice, http.MethodGet, "/api/transactions/"+groceries.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.alice, http.MethodPost, "/api/categories", map[string]string{"name": "Salary", "kind": "income"})
	require.Equal(t, http.StatusCreated, rec.Code)
	salary := decode[core.Category](t, rec)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
		field  string
	}{
		{"malformed json", `{"kind":`, http.StatusBadRequest, "bad_request", ""},
		{"unknown field", `{"kind":"expense","amount":1,"bogus":true}`, http.StatusBadRequest, "bad_request", ""},
		{"zero amount", map[string]any{"kind": "expense", "amount": 0}, http.StatusUnprocessableEntity, "invalid_input", "amount"},
		{"decimal amount", map[string]any{"kind": "expense", "amount": "12.50"}, http.StatusUnprocessableEntity, "invalid_input", "amount"},
		{"bad kind", map[string]any{"kind": "transfer", "amount": 10}, http.StatusUnprocessableEntity, "invalid_input", "kind"},
		{"bad date", map[string]any{"kind": "expense", "amount": 10, "occurredAt": "yesterday"}, http.StatusUnprocessableEntity, "invalid_input", "occurredAt"},
		{"kind mismatch", map[string]any{"kind": "expense", "amount": 10, "categoryId": salary.ID}, http.StatusUnprocessableEntity, "invalid_input", "categoryId"},
		{"unknown category", map[string]any{"kind": "income", "amount": 10, "categoryId": "nope"}, http.StatusUnprocessableEntity, "invalid_input", "categoryId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, env.alice, http.MethodPost, "/api/transactions", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[errorBody](t, rec)
			assert.Equal(t, tt.code, body.Error)
			assert.Equal(t, tt.field, body.Field)
		})
	}

	t.Run("bob cannot use alice's category", func(t *testing.T) {
		rec := env.do(t, env.bob, http.MethodPost, "/api/transactions", map[string]any{"kind": "income", "amount": 10, "categoryId": salary.ID})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "categoryId", decode[errorBody](t, rec).Field)
	})

	t.Run("inverted range matches nothing", func(t *testing.T) {
		rec := env.do(t, env.alice, http.MethodGet, "/api/transactions?from=2024-03-05&to=2024-03-01", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("bad filter", func(t *testing.T) {
		rec := env.do(t, env.alice, http.MethodGet, "/api/transactions?sort=sideways", nil)
		assert.Equal(t, "sort", decode[errorBody](t, rec).Field)
	})
}

func TestCategoryDeleteDetaches(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.alice, http.MethodPost, "/api/categories", map[string]string{"name": "Food", "kind": "expense", "icon": "bowl"})
	require.Equal(t, http.StatusCreated, rec.Code)
	food := decode[core.Category](t, rec)

	rec = env.do(t, env.alice, http.MethodPost, "/api/transactions", map[string]any{"kind": "expense", "amount": 45000, "categoryId": food.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	tx := decode[core.Transaction](t, rec)

	rec = env.do(t, env.alice, http.MethodPatch, "/api/categories/"+food.ID, map[string]string{"kind": "income"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "kind is fixed while transactions use the category")

	rec = env.do(t, env.alice, http.MethodPatch, "/api/categories/"+food.ID, map[string]string{"name": "Meals"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Meals", decode[core.Category](t, rec).Name)

	rec = env.do(t, env.alice, http.MethodDelete, "/api/categories/"+food.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, env.alice, http.MethodGet, "/api/transactions/"+tx.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[core.Transaction](t, rec).CategoryID)

	rec = env.do(t, env.alice, http.MethodGet, "/api/categories?kind=expense", nil)
	assert.Empty(t, decode[[]core.Category](t, rec))
}

func TestChallengeFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.alice, http.MethodPost, "/api/challenges", map[string]any{"title": "No spend", "type": "NO_SPEND", "durationDays": 2})
	assert.Equal(t, http.StatusForbidden, rec.Code, "ordinary users cannot create templates")

	rec = env.do(t, env.admin, http.MethodPost, "/api/challenges", map[string]any{"title": "Save", "type": "SAVE_FIXED", "durationDays": 2})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "targetAmountPerDay", decode[errorBody](t, rec).Field)

	rec = env.do(t, env.admin, http.MethodPost, "/api/challenges", map[string]any{"title": "No spend weekend", "type": "no_spend", "durationDays": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ch := decode[core.Challenge](t, rec)
	assert.True(t, ch.Active)
	assert.True(t, ch.Public)

	rec = env.do(t, env.alice, http.MethodGet, "/api/challenges", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Challenge](t, rec), 1)

	rec = env.do(t, env.alice, http.MethodPost, "/api/challenges/"+ch.ID+"/join", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	en := decode[core.Enrollment](t, rec)
	assert.Equal(t, core.StatusActive, en.Status)

	rec = env.do(t, env.alice, http.MethodPost, "/api/challenges/"+ch.ID+"/join", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "one ACTIVE enrollment per pair")

	rec = env.do(t, env.alice, http.MethodPost, "/api/enrollments/"+en.ID+"/check-in", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[core.Enrollment](t, rec).CurrentStreak)

	rec = env.do(t, env.alice, http.MethodPost, "/api/enrollments/"+en.ID+"/check-in", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_checked_in", decode[errorBody](t, rec).Error)

	*env.clock = env.clock.Add(24 * time.Hour)
	rec = env.do(t, env.alice, http.MethodPost, "/api/enrollments/"+en.ID+"/check-in", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[core.Enrollment](t, rec)
	assert.Equal(t, core.StatusCompleted, done.Status)
	assert.Equal(t, 2, done.CompletedDays)

	*env.clock = env.clock.Add(24 * time.Hour)
	rec = env.do(t, env.alice, http.MethodPost, "/api/enrollments/"+en.ID+"/check-in", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", decode[errorBody](t, rec).Error)

	rec = env.do(t, env.bob, http.MethodPost, "/api/enrollments/"+en.ID+"/check-in", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "enrollments are private to their owner")

	rec = env.do(t, env.alice, http.MethodGet, "/api/enrollments/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]core.Enrollment](t, rec)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Challenge)
	assert.Equal(t, "No spend weekend", mine[0].Challenge.Title)

	rec = env.do(t, env.alice, http.MethodDelete, "/api/enrollments/"+en.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, env.alice, http.MethodGet, "/api/enrollments/me", nil)
	assert.Empty(t, decode[[]core.Enrollment](t, rec))
}

func TestChallengeUpdateAndVisibility(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.admin, http.MethodPost, "/api/challenges", map[string]any{
		"title": "Save daily", "type": "SAVE_FIXED", "durationDays": 30, "targetAmountPerDay": "50,000", "isPublic": false,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ch := decode[core.Challenge](t, rec)
	require.NotNil(t, ch.TargetAmountPerDay)
	assert.Equal(t, int64(50000), *ch.TargetAmountPerDay)

	rec = env.do(t, env.alice, http.MethodGet, "/api/challenges/"+ch.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "private templates are hidden")
	rec = env.do(t, env.alice, http.MethodPost, "/api/challenges/"+ch.ID+"/join", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, env.alice, http.MethodPatch, "/api/challenges/"+ch.ID, map[string]any{"isPublic": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, env.admin, http.MethodPatch, "/api/challenges/"+ch.ID, `{"targetAmountPerDay": null}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "SAVE_FIXED still needs a target")

	rec = env.do(t, env.admin, http.MethodPatch, "/api/challenges/"+ch.ID, `{"type": "CUSTOM", "targetAmountPerDay": null, "isPublic": true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[core.Challenge](t, rec)
	assert.Equal(t, core.ChallengeCustom, updated.Kind)
	assert.Nil(t, updated.TargetAmountPerDay)

	rec = env.do(t, env.alice, http.MethodGet, "/api/challenges/"+ch.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, env.admin, http.MethodGet, "/api/challenges/mine", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]core.Challenge](t, rec), 1)
}

func TestUpdateMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.alice, http.MethodPatch, "/api/me", map[string]any{"displayName": " Alice B "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Alice B", decode[core.User](t, rec).DisplayName)

	rec = env.do(t, env.alice, http.MethodPatch, "/api/me", map[string]any{"displayName": "  "})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "displayName", decode[errorBody](t, rec).Field)

	rec = env.do(t, env.alice, http.MethodGet, "/api/me", nil)
	assert.Equal(t, "Alice B", decode[core.User](t, rec).DisplayName)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	hash, err := services.HashPassword("old-password")
	require.NoError(t, err)
	carol, err := env.repo.CreateUser(context.Background(), core.User{DisplayName: "Carol", PasswordHash: hash})
	require.NoError(t, err)

	rec := env.do(t, carol, http.MethodPut, "/api/me/password",
		map[string]any{"currentPassword": "guess", "newPassword": "new-password"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "currentPassword", decode[errorBody](t, rec).Field)

	rec = env.do(t, carol, http.MethodPut, "/api/me/password",
		map[string]any{"currentPassword": "old-password", "newPassword": "new-password"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = env.do(t, carol, http.MethodPut, "/api/me/password",
		map[string]any{"currentPassword": "old-password", "newPassword": "third-password"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeleteMeCascades(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.bob, http.MethodPost, "/api/transactions", map[string]any{"kind": "income", "amount": 10})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, env.bob, http.MethodDelete, "/api/me", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, env.bob, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	txs, err := env.repo.ListTransactions(context.Background(), env.bob.ID, core.TransactionFilter{}.Normalized())
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestRateLimitOnWrites(t *testing.T) {
	env := newTestEnv(t)
	env.srv.limiter.Stop()

	logger := applog.New(applog.Config{Output: io.Discard})
	views := ledger.NewEngine(env.repo, ledger.Options{})
	srv := NewServer(":0", Deps{
		Categories: services.NewCategoryService(env.repo, views, nil),
		Ledger:     views,
	}, Options{RateLimitPerMinute: 1, Logger: logger})
	t.Cleanup(func() { srv.limiter.Stop() })
	env.srv = srv

	rec := env.do(t, env.alice, http.MethodPost, "/api/categories", map[string]string{"name": "A", "kind": "expense"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, env.alice, http.MethodPost, "/api/categories", map[string]string{"name": "B", "kind": "expense"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode[errorBody](t, rec).Error)

	rec = env.do(t, env.alice, http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, env.alice, http.MethodGet, "/api/nothing-here", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
