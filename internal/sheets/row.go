package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

// Header is the first row of every mirror sheet.
var Header = []string{"Timestamp", "Type", "User", "Entity", "Kind", "Amount", "Category", "Detail"}

// Row is the flattened, spreadsheet-friendly form of a core.Event.
type Row struct {
	Timestamp time.Time
	Type      core.EventType
	UserID    string
	EntityID  string
	Kind      string
	Amount    int64
	Category  string
	Detail    string
}

// RowFromEvent flattens ev. Only the snapshot that ev carries contributes
// kind, amount, category and detail.
func RowFromEvent(ev core.Event) Row {
	r := Row{
		Timestamp: ev.OccurredAt.UTC(),
		Type:      ev.Type,
		UserID:    ev.UserID,
		EntityID:  ev.EntityID,
	}
	switch {
	case ev.Transaction != nil:
		t := ev.Transaction
		r.Kind = string(t.Kind)
		r.Amount = t.Amount
		if t.Category != nil {
			r.Category = t.Category.Name
		}
		r.Detail = t.Note
	case ev.Category != nil:
		r.Kind = string(ev.Category.Kind)
		r.Category = ev.Category.Name
		r.Detail = ev.Category.Icon
	case ev.Enrollment != nil:
		e := ev.Enrollment
		r.Kind = string(e.Status)
		if e.Challenge != nil {
			r.Category = e.Challenge.Title
		}
		r.Detail = fmt.Sprintf("streak %d, longest %d, days %d", e.CurrentStreak, e.LongestStreak, e.CompletedDays)
	}
	return r
}

// Values renders the row for the Sheets API.
func (r Row) Values() []any {
	return []any{
		r.Timestamp.Format(time.RFC3339),
		string(r.Type),
		r.UserID,
		r.EntityID,
		r.Kind,
		r.Amount,
		r.Category,
		r.Detail,
	}
}

// ParseRow reads a row written by Values. Short rows are padded; the header
// row and rows with a bad timestamp fail.
func ParseRow(cols []string) (Row, error) {
	get := func(i int) string {
		if i < len(cols) {
			return strings.TrimSpace(cols[i])
		}
		return ""
	}

	ts, err := time.Parse(time.RFC3339, get(0))
	if err != nil {
		return Row{}, fmt.Errorf("parse timestamp %q: %w", get(0), err)
	}
	r := Row{
		Timestamp: ts.UTC(),
		Type:      core.EventType(get(1)),
		UserID:    get(2),
		EntityID:  get(3),
		Kind:      get(4),
		Category:  get(6),
		Detail:    get(7),
	}
	if amount := strings.ReplaceAll(get(5), ",", ""); amount != "" {
		r.Amount, err = strconv.ParseInt(amount, 10, 64)
		if err != nil {
			return Row{}, fmt.Errorf("parse amount %q: %w", get(5), err)
		}
	}
	return r, nil
}
