package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failing struct{}

func (failing) Publish(context.Context, ...Event) error { return errors.New("broker down") }

func TestEmit(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 7, 1, 9, 0, 0, 0, time.FixedZone("UTC+2", 2*3600))

	t.Run("Records events", func(t *testing.T) {
		rec := NewRecorder()
		Emit(ctx, rec, zap.NewNop(),
			New(ReservationCreated, "r1", at, map[string]any{"status": "confirmed"}),
			New(RoomStatusChanged, "room1", at, nil))

		assert.Len(t, rec.Events(), 2)
		created := rec.OfType(ReservationCreated)
		if assert.Len(t, created, 1) {
			assert.Equal(t, "r1", created[0].AggregateID)
			assert.Equal(t, time.UTC, created[0].OccurredAt.Location())
			assert.NotEmpty(t, created[0].ID)
		}
	})

	t.Run("Publish failure is logged not returned", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		Emit(ctx, failing{}, zap.New(core), New(ReservationCancelled, "r1", at, nil))
		assert.Equal(t, 1, logs.FilterMessage("publish events failed").Len())
	})

	t.Run("Nil publisher is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() { Emit(ctx, nil, zap.NewNop(), New(ReservationNoShow, "r1", at, nil)) })
	})
}
