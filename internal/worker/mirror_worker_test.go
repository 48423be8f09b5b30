package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/sheets/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ err error }

func (f failingSink) AppendEvent(context.Context, core.Event) (string, error) {
	return "", f.err
}

// fakeConsumer replays messages through the handler, then blocks until ctx ends.
type fakeConsumer struct {
	msgs   []*amqp.EventMessage
	errs   []error
	result error
}

func (c *fakeConsumer) ConsumeWithRetry(ctx context.Context, h amqp.Handler) error {
	for _, m := range c.msgs {
		c.errs = append(c.errs, h(ctx, m))
	}
	if c.result != nil {
		return c.result
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestMirrorWorker_HandleEvent(t *testing.T) {
	sink := memory.New()
	w := NewMirrorWorker(sink)
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	msg := amqp.NewEventMessage(core.Event{
		Type: core.EventTransactionCreated, UserID: "u1", EntityID: "t1", OccurredAt: at,
		Transaction: &core.Transaction{Kind: core.KindIncome, Amount: 500000},
	})
	require.NoError(t, w.HandleEvent(context.Background(), msg))

	rows, err := sink.ListEvents(context.Background(), 2024)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t1", rows[0].EntityID)
	assert.Equal(t, int64(500000), rows[0].Amount)

	mirrored, failed := w.Stats()
	assert.Equal(t, int64(1), mirrored)
	assert.Zero(t, failed)
}

func TestMirrorWorker_HandleEventErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	w := NewMirrorWorker(failingSink{err: boom})

	err := w.HandleEvent(context.Background(), &amqp.EventMessage{Type: core.EventUserDeleted, UserID: "u1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Error(t, w.HandleEvent(context.Background(), nil))

	_, failed := w.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestMirrorWorker_Run(t *testing.T) {
	t.Run("cancellation is a clean stop", func(t *testing.T) {
		sink := memory.New()
		w := NewMirrorWorker(sink)
		c := &fakeConsumer{msgs: []*amqp.EventMessage{
			{Type: core.EventCategoryCreated, UserID: "u1", EntityID: "c1", Timestamp: time.Now()},
			{Type: core.EventCategoryDeleted, UserID: "u1", EntityID: "c1", Timestamp: time.Now()},
		}}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		require.NoError(t, w.Run(ctx, c))
		assert.Equal(t, 2, sink.Len())
		assert.Equal(t, []error{nil, nil}, c.errs)
	})

	t.Run("consumer failure is reported", func(t *testing.T) {
		w := NewMirrorWorker(memory.New())
		boom := errors.New("access refused")
		err := w.Run(context.Background(), &fakeConsumer{result: boom})
		assert.ErrorIs(t, err, boom)
	})
}
