package room

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/keylock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/response"
)

type CreateRequest struct {
	Number     string
	Floor      int
	RoomTypeID string
}

// Persister stores room snapshots.
type Persister interface {
	SaveRooms(ctx context.Context, rooms ...Room) error
}

// RoomTypes answers whether a room type exists.
type RoomTypes interface {
	Exists(ctx context.Context, id string) bool
}

// Key returns the lock key of a room.
func Key(id string) string {
	return "room:" + id
}

// Tracker owns the status of every physical room.
type Tracker struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	locks     *keylock.Manager
	persister Persister
	roomTypes RoomTypes
	publisher event.Publisher
	clock     clock.Clock
	logger    *zap.Logger
}

func NewTracker(locks *keylock.Manager, persister Persister, roomTypes RoomTypes, publisher event.Publisher, clk clock.Clock, logger *zap.Logger) *Tracker {
	return &Tracker{
		rooms:     make(map[string]*Room),
		locks:     locks,
		persister: persister,
		roomTypes: roomTypes,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
	}
}

func (t *Tracker) Register(ctx context.Context, req CreateRequest) (*Room, error) {
	number := strings.TrimSpace(req.Number)
	if number == "" {
		return nil, ErrNumberRequired
	}
	if !t.roomTypes.Exists(ctx, req.RoomTypeID) {
		return nil, fmt.Errorf("room type %s: %w", req.RoomTypeID, ErrUnknownRoomType)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.rooms {
		if strings.EqualFold(r.Number, number) {
			return nil, ErrNumberTaken
		}
	}

	r := Room{
		ID:           uuid.NewString(),
		Number:       number,
		Floor:        req.Floor,
		RoomTypeID:   req.RoomTypeID,
		Physical:     PhysicalVacantClean,
		Housekeeping: HousekeepingClean,
		Version:      1,
		UpdatedAt:    t.clock.Now(),
	}
	if err := t.persister.SaveRooms(ctx, r); err != nil {
		return nil, fmt.Errorf("save room failed: %w", err)
	}
	t.rooms[r.ID] = &r

	t.logger.Info("room registered", zap.String("room_id", r.ID), zap.String("number", r.Number))
	return &r, nil
}

// Get returns a copy of the room.
func (t *Tracker) Get(ctx context.Context, id string) (*Room, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (t *Tracker) List(ctx context.Context, filter Filter) ([]*Room, int, error) {
	t.mu.RLock()
	out := make([]*Room, 0, len(t.rooms))
	for _, r := range t.rooms {
		if filter.RoomTypeID != "" && r.RoomTypeID != filter.RoomTypeID {
			continue
		}
		if filter.Physical != "" && string(r.Physical) != filter.Physical {
			continue
		}
		if filter.Housekeeping != "" && string(r.Housekeeping) != filter.Housekeeping {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	total := len(out)
	return response.Paginate(out, filter.Page, filter.PageSize), total, nil
}

func (t *Tracker) CompleteHousekeeping(ctx context.Context, id string, result HousekeepingStatus) (*Room, error) {
	return t.mutate(ctx, id, "housekeeping_completed", func(r Room) (Room, error) {
		return r.CompleteHousekeeping(result)
	})
}

func (t *Tracker) MarkDirty(ctx context.Context, id string) (*Room, error) {
	return t.mutate(ctx, id, "marked_dirty", func(r Room) (Room, error) {
		return r.MarkDirty()
	})
}

func (t *Tracker) Block(ctx context.Context, id string, status PhysicalStatus, reason string) (*Room, error) {
	return t.mutate(ctx, id, "blocked", func(r Room) (Room, error) {
		return r.Block(status, reason)
	})
}

func (t *Tracker) Unblock(ctx context.Context, id string) (*Room, error) {
	return t.mutate(ctx, id, "unblocked", func(r Room) (Room, error) {
		return r.Unblock()
	})
}

// mutate runs an administrative transition under the room's key lock.
func (t *Tracker) mutate(ctx context.Context, id, action string, fn func(Room) (Room, error)) (*Room, error) {
	unlock, err := t.locks.Acquire(ctx, Key(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(*current)
	if err != nil {
		return nil, err
	}
	next.Version++
	next.UpdatedAt = t.clock.Now()

	if err := t.persister.SaveRooms(ctx, next); err != nil {
		return nil, fmt.Errorf("save room failed: %w", err)
	}
	t.Apply(next)

	t.logger.Info("room status changed",
		zap.String("room_id", id),
		zap.String("action", action),
		zap.String("physical", string(next.Physical)),
		zap.String("housekeeping", string(next.Housekeeping)))
	event.Emit(ctx, t.publisher, t.logger, event.New(event.RoomStatusChanged, id, next.UpdatedAt, map[string]any{
		"action":       action,
		"physical":     next.Physical,
		"housekeeping": next.Housekeeping,
	}))
	return &next, nil
}

// Stage returns the next version of a room for a lifecycle change set.
// The caller must hold the room's key lock until Apply.
func (t *Tracker) Stage(r Room) Room {
	r.Version++
	r.UpdatedAt = t.clock.Now()
	return r
}

// Apply installs already-persisted room snapshots.
func (t *Tracker) Apply(rooms ...Room) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range rooms {
		cp := r
		t.rooms[cp.ID] = &cp
	}
}

// Restore seeds rooms from persisted state.
func (t *Tracker) Restore(rooms []Room) {
	t.Apply(rooms...)
}
