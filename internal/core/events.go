package core

import (
	"context"
	"time"
)

const (
	EventCategoryCreated     EventType = "category.created"
	EventCategoryUpdated     EventType = "category.updated"
	EventCategoryDeleted     EventType = "category.deleted"
	EventTransactionCreated  EventType = "transaction.created"
	EventTransactionUpdated  EventType = "transaction.updated"
	EventTransactionDeleted  EventType = "transaction.deleted"
	EventEnrollmentJoined    EventType = "enrollment.joined"
	EventEnrollmentCheckedIn EventType = "enrollment.checked_in"
	EventEnrollmentCompleted EventType = "enrollment.completed"
	EventEnrollmentLeft      EventType = "enrollment.left"
	EventUserUpdated         EventType = "user.updated"
	EventUserDeleted         EventType = "user.deleted"
)

type EventType string

// Event describes a committed change. At most one snapshot field is set.
type Event struct {
	Type        EventType
	UserID      string
	EntityID    string
	OccurredAt  time.Time
	Category    *Category
	Transaction *Transaction
	Enrollment  *Enrollment
}

// EventPublisher delivers events to downstream consumers. Implementations must be safe
// for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}
