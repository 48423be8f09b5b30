package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"tally/internal/core"
)

// EventMessage is the wire form of a core.Event. At most one snapshot is set;
// delete events carry none.
type EventMessage struct {
	Type        core.EventType    `json:"type"`
	UserID      string            `json:"userId"`
	EntityID    string            `json:"entityId"`
	Timestamp   time.Time         `json:"timestamp"`
	Category    *core.Category    `json:"category,omitempty"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Enrollment  *core.Enrollment  `json:"enrollment,omitempty"`
}

// NewEventMessage converts ev, stamping it with the current time when it has none.
func NewEventMessage(ev core.Event) *EventMessage {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &EventMessage{
		Type:        ev.Type,
		UserID:      ev.UserID,
		EntityID:    ev.EntityID,
		Timestamp:   ts,
		Category:    ev.Category,
		Transaction: ev.Transaction,
		Enrollment:  ev.Enrollment,
	}
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ToEvent converts the message back into a domain event.
func (m *EventMessage) ToEvent() core.Event {
	return core.Event{
		Type:        m.Type,
		UserID:      m.UserID,
		EntityID:    m.EntityID,
		OccurredAt:  m.Timestamp,
		Category:    m.Category,
		Transaction: m.Transaction,
		Enrollment:  m.Enrollment,
	}
}

// EventMessageFromJSON decodes a message and rejects ones without a type.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("event message has no type")
	}
	return &msg, nil
}
