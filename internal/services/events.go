package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tally/internal/core"
	applog "tally/internal/log"
)

// Invalidator drops cached ledger views for a user.
type Invalidator interface {
	Invalidate(userID string)
}

// notifier runs the post-commit steps shared by every mutation: invalidate
// the user's views, then publish the event. Neither step can fail the request.
type notifier struct {
	views  Invalidator
	events core.EventPublisher
	now    func() time.Time
}

func (n notifier) committed(ctx context.Context, ev core.Event) {
	if n.views != nil {
		n.views.Invalidate(ev.UserID)
	}

	sl := applog.NewStructuredLogger(applog.FromContext(ctx).WithComponent(applog.ComponentLedger))
	sl.LogMutation(ctx, mutationOp(ev.Type), string(ev.Type), ev.UserID, ev.EntityID)

	if n.events == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping event", applog.FieldEventType, ev.Type)
		return
	}
	if n.now != nil {
		ev.OccurredAt = n.now().UTC()
	} else {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := n.events.Publish(ctx, ev); err != nil {
		// The change is already committed.
		sl.LogError(ctx, "Failed to publish event", err, applog.OpPublish,
			applog.NewFields().WithEventType(string(ev.Type)).WithEntity(ev.UserID, ev.EntityID))
	}
}

// mutationOp names the write behind a ledger event type.
func mutationOp(t core.EventType) string {
	switch {
	case strings.HasSuffix(string(t), ".created"):
		return applog.OpCreate
	case strings.HasSuffix(string(t), ".updated"):
		return applog.OpUpdate
	default:
		return applog.OpDelete
	}
}
