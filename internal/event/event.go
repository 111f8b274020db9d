// Package event publishes raw domain events for downstream consumers such as
// analytics. Publishing happens after a state change has committed and never
// affects its outcome.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Type string

const (
	ReservationCreated      Type = "reservation.created"
	ReservationConfirmed    Type = "reservation.confirmed"
	ReservationRoomAssigned Type = "reservation.room_assigned"
	ReservationCheckedIn    Type = "reservation.checked_in"
	ReservationCheckedOut   Type = "reservation.checked_out"
	ReservationCancelled    Type = "reservation.cancelled"
	ReservationNoShow       Type = "reservation.no_show"
	PaymentRecorded         Type = "reservation.payment_recorded"
	TransactionPosted       Type = "folio.transaction_posted"
	RoomStatusChanged       Type = "room.status_changed"
	InventoryOverrideSet    Type = "inventory.override_set"
	ChannelBookingSynced    Type = "channel.booking_synced"
	ChannelConflictRecorded Type = "channel.conflict_recorded"
	ChannelConflictResolved Type = "channel.conflict_resolved"
)

// Event is one immutable fact.
type Event struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Data        map[string]any `json:"data,omitempty"`
}

// New builds an event with a fresh ID.
func New(t Type, aggregateID string, at time.Time, data map[string]any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		AggregateID: aggregateID,
		OccurredAt:  at.UTC(),
		Data:        data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Emit publishes and logs failures instead of returning them.
func Emit(ctx context.Context, pub Publisher, logger *zap.Logger, events ...Event) {
	if pub == nil || len(events) == 0 {
		return
	}
	if err := pub.Publish(ctx, events...); err != nil {
		logger.Warn("publish events failed", zap.Int("count", len(events)), zap.Error(err))
	}
}

// LogPublisher writes events to the logger. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, e := range events {
		p.logger.Info("event",
			zap.String("event_id", e.ID),
			zap.String("type", string(e.Type)),
			zap.String("aggregate_id", e.AggregateID),
			zap.Any("data", e.Data))
	}
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, events ...Event) error {
	r.mu.Lock()
	r.events = append(r.events, events...)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
