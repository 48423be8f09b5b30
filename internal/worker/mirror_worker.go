package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"tally/internal/amqp"
	applog "tally/internal/log"
	"tally/internal/sheets"
)

// MirrorWorker copies ledger events from the queue into a spreadsheet sink.
type MirrorWorker struct {
	sink sheets.EventAppender

	mirrored atomic.Int64
	failed   atomic.Int64
}

func NewMirrorWorker(sink sheets.EventAppender) *MirrorWorker {
	return &MirrorWorker{sink: sink}
}

// HandleEvent appends a single event message. A returned error makes the
// consumer nack and requeue the delivery.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.EventMessage) error {
	if msg == nil {
		return errors.New("nil event message")
	}
	slog.InfoContext(ctx, "Processing event message",
		applog.FieldEventType, msg.Type,
		applog.FieldUserID, msg.UserID,
		applog.FieldEntityID, msg.EntityID)

	ref, err := w.sink.AppendEvent(ctx, msg.ToEvent())
	if err != nil {
		w.failed.Add(1)
		slog.ErrorContext(ctx, "Failed to mirror event",
			applog.FieldEventType, msg.Type,
			applog.FieldEntityID, msg.EntityID,
			"error", err)
		return fmt.Errorf("append event: %w", err)
	}

	w.mirrored.Add(1)
	slog.InfoContext(ctx, "Successfully mirrored event",
		applog.FieldEventType, msg.Type,
		applog.FieldEntityID, msg.EntityID,
		applog.FieldSheetsRef, ref)
	return nil
}

// Consumer is the queue side of the worker.
type Consumer interface {
	ConsumeWithRetry(ctx context.Context, handler amqp.Handler) error
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (w *MirrorWorker) Run(ctx context.Context, c Consumer) error {
	slog.InfoContext(ctx, "Event mirror worker started")
	err := c.ConsumeWithRetry(ctx, w.HandleEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume events: %w", err)
	}
	slog.InfoContext(ctx, "Event mirror worker stopped",
		"mirrored", w.mirrored.Load(),
		"failed", w.failed.Load())
	return nil
}

// Stats returns how many events were mirrored and how many failed.
func (w *MirrorWorker) Stats() (mirrored, failed int64) {
	return w.mirrored.Load(), w.failed.Load()
}
