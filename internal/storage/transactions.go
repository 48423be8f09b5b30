package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tally/internal/core"
	applog "tally/internal/log"

	"github.com/google/uuid"
)

const transactionSelect = `
SELECT t.id, t.user_id, t.category_id, t.kind, t.amount, t.occurred_at, t.note, t.created_at,
       c.name, c.kind, c.icon
FROM transactions t
LEFT JOIN categories c ON c.id = t.category_id`

// categoryKindGuard holds when the row is uncategorized or its category
// belongs to the same user with the same kind. Binds: category, category,
// user, kind.
const categoryKindGuard = `(? IS NULL OR EXISTS (
	SELECT 1 FROM categories c WHERE c.id = ? AND c.user_id = ? AND c.kind = ?))`

func errCategoryMismatch() error {
	return core.InvalidField("categoryId", "category does not exist or has another kind")
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.OccurredAt = t.OccurredAt.UTC()

	cat := nullString(t.CategoryID)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, category_id, kind, amount, occurred_at, note, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE `+categoryKindGuard,
		t.ID, t.UserID, cat, string(t.Kind), t.Amount,
		toMillis(t.OccurredAt), t.Note, toMillis(t.CreatedAt),
		cat, cat, t.UserID, string(t.Kind))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", mapError(err, "transaction"))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, errCategoryMismatch()
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		applog.FieldUserID, t.UserID,
		applog.FieldKind, t.Kind,
		applog.FieldAmount, t.Amount)
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ? AND t.user_id = ?`, id, userID)
	t, err := scanTransaction(row.Scan)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", mapError(err, "transaction"))
	}
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	cat := nullString(t.CategoryID)
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, kind = ?, amount = ?, occurred_at = ?, note = ?
		WHERE id = ? AND user_id = ? AND `+categoryKindGuard,
		cat, string(t.Kind), t.Amount, toMillis(t.OccurredAt), t.Note,
		t.ID, t.UserID,
		cat, cat, t.UserID, string(t.Kind))
	if err != nil {
		return fmt.Errorf("update transaction: %w", mapError(err, "transaction"))
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	exists, err := r.rowExists(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = ? AND user_id = ?)`, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if !exists {
		return core.NotFoundf("transaction %s", t.ID)
	}
	return errCategoryMismatch()
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundf("transaction %s", id)
	}
	return nil
}

// ListTransactions applies f to the user's ledger. f is normalized first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	f = f.Normalized()

	var (
		where = []string{"t.user_id = ?"}
		args  = []any{userID}
	)
	if f.Kind != "" {
		where = append(where, "t.kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.CategoryID != "" {
		where = append(where, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.From != nil {
		where = append(where, "t.occurred_at >= ?")
		args = append(args, toMillis(*f.From))
	}
	if f.To != nil {
		where = append(where, "t.occurred_at <= ?")
		args = append(args, toMillis(*f.To))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "instr(lower(t.note), lower(?)) > 0")
		args = append(args, q)
	}

	dir := "DESC"
	if f.Sort == core.SortAsc {
		dir = "ASC"
	}
	query := transactionSelect +
		` WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY t.occurred_at %[1]s, t.created_at %[1]s, t.rowid %[1]s LIMIT ?`, dir)
	args = append(args, f.Limit)

	return queryTransactions(ctx, r.db, query, args...)
}

// Summary computes totals and the most recent transactions inside one
// transaction so both parts observe the same snapshot.
func (r *SQLiteRepository) Summary(ctx context.Context, userID string, recent int) (core.Summary, error) {
	var s core.Summary
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(CASE WHEN kind = 'income' THEN amount END), 0),
			       COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount END), 0)
			FROM transactions WHERE user_id = ?`, userID).
			Scan(&s.TotalIncome, &s.TotalExpense)
		if err != nil {
			return fmt.Errorf("sum transactions: %w", err)
		}

		s.Recent, err = queryTransactions(ctx, tx,
			transactionSelect+` WHERE t.user_id = ? ORDER BY t.occurred_at DESC, t.created_at DESC, t.rowid DESC LIMIT ?`,
			userID, recent)
		return err
	})
	if err != nil {
		return core.Summary{}, fmt.Errorf("summary: %w", err)
	}
	s.CurrentBalance = s.TotalIncome - s.TotalExpense
	return s, nil
}

// ExpenseBreakdown sums categorized expenses per category, largest first.
func (r *SQLiteRepository) ExpenseBreakdown(ctx context.Context, userID string) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.icon, SUM(t.amount) AS total, COUNT(*)
		FROM transactions t
		JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.kind = 'expense'
		GROUP BY c.id, c.name, c.icon
		ORDER BY total DESC, c.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("expense breakdown: %w", err)
	}
	defer rows.Close()

	out := []core.CategoryTotal{}
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &ct.Icon, &ct.Total, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan breakdown row: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]core.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(scan func(dest ...any) error) (core.Transaction, error) {
	var (
		t                core.Transaction
		categoryID       sql.NullString
		kind             string
		occurred         int64
		created          int64
		catName, catKind sql.NullString
		catIcon          sql.NullString
	)
	err := scan(&t.ID, &t.UserID, &categoryID, &kind, &t.Amount, &occurred, &t.Note, &created,
		&catName, &catKind, &catIcon)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	t.OccurredAt = fromMillis(occurred)
	t.CreatedAt = fromMillis(created)
	if categoryID.Valid {
		id := categoryID.String
		t.CategoryID = &id
		t.Category = &core.CategoryRef{
			ID:   id,
			Name: catName.String,
			Kind: core.Kind(catKind.String),
			Icon: catIcon.String,
		}
	}
	return t, nil
}
