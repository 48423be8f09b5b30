package core

import "time"

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"

	DefaultListLimit = 100
	MaxListLimit     = 1000
	RecentLimit      = 5
)

type SortOrder string

// TransactionFilter narrows a transaction listing. Zero values impose no constraint.
type TransactionFilter struct {
	Kind       Kind
	CategoryID string
	From       *time.Time
	To         *time.Time
	Query      string
	Limit      int
	Sort       SortOrder
}

// Normalized fills defaults: newest first and DefaultListLimit rows, capped at MaxListLimit.
func (f TransactionFilter) Normalized() TransactionFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Sort != SortAsc {
		f.Sort = SortDesc
	}
	return f
}

// Summary is the dashboard view of a user's ledger.
type Summary struct {
	TotalIncome    int64         `json:"totalIncome"`
	TotalExpense   int64         `json:"totalExpense"`
	CurrentBalance int64         `json:"currentBalance"`
	Recent         []Transaction `json:"recentTransactions"`
}

// CategoryTotal is one bar of the expense breakdown.
type CategoryTotal struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Icon       string `json:"icon,omitempty"`
	Total      int64  `json:"total"`
	Count      int    `json:"count"`
}
