package sheets

import (
	"context"

	"tally/internal/core"
)

// Ports for outbound adapters.
type (
	// EventAppender writes one row per ledger event.
	EventAppender interface {
		AppendEvent(ctx context.Context, ev core.Event) (rowRef string, err error)
	}

	// EventLister reads back the rows mirrored for a given year.
	EventLister interface {
		ListEvents(ctx context.Context, year int) ([]Row, error)
	}
)
