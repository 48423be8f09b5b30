package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/core"
	"tally/internal/sheets"
)

var (
	_ sheets.EventAppender = (*Store)(nil)
	_ sheets.EventLister   = (*Store)(nil)
)

// Store is an in-process stand-in for the Google Sheets mirror, used when no
// spreadsheet is configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows []sheets.Row
}

func New() *Store {
	return &Store{}
}

// AppendEvent stores the event row and returns a synthetic row reference.
func (s *Store) AppendEvent(_ context.Context, ev core.Event) (string, error) {
	if ev.Type == "" {
		return "", fmt.Errorf("event has no type")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, sheets.RowFromEvent(ev))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// ListEvents returns the rows whose timestamp falls in year, in append order.
func (s *Store) ListEvents(_ context.Context, year int) ([]sheets.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.Row, 0, len(s.rows))
	for _, r := range s.rows {
		if r.Timestamp.Year() == year {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
