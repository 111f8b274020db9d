package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/keylock"
)

type memPersister struct {
	mu    sync.Mutex
	saved []Room
	fail  error
}

func (p *memPersister) SaveRooms(ctx context.Context, rooms ...Room) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.saved = append(p.saved, rooms...)
	return nil
}

type knownTypes map[string]bool

func (k knownTypes) Exists(ctx context.Context, id string) bool { return k[id] }

func newTracker(t *testing.T) (*Tracker, *memPersister, *event.Recorder) {
	t.Helper()
	p := &memPersister{}
	rec := event.NewRecorder()
	tr := NewTracker(keylock.New(time.Second), p, knownTypes{"rt": true}, rec,
		clock.At(bizdate.MustParse("2025-07-01")), zap.NewNop())
	return tr, p, rec
}

func TestTrackerRegister(t *testing.T) {
	ctx := context.Background()
	tr, p, _ := newTracker(t)

	r, err := tr.Register(ctx, CreateRequest{Number: "101", Floor: 1, RoomTypeID: "rt"})
	require.NoError(t, err)
	assert.True(t, r.Ready())
	assert.Len(t, p.saved, 1)

	_, err = tr.Register(ctx, CreateRequest{Number: "101", RoomTypeID: "rt"})
	assert.ErrorIs(t, err, ErrNumberTaken)

	_, err = tr.Register(ctx, CreateRequest{Number: " ", RoomTypeID: "rt"})
	assert.ErrorIs(t, err, ErrNumberRequired)

	_, err = tr.Register(ctx, CreateRequest{Number: "102", RoomTypeID: "missing"})
	assert.ErrorIs(t, err, ErrUnknownRoomType)

	rooms, total, err := tr.List(ctx, Filter{RoomTypeID: "rt", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "101", rooms[0].Number)
}

func TestTrackerHousekeepingFlow(t *testing.T) {
	ctx := context.Background()
	tr, _, rec := newTracker(t)

	r, err := tr.Register(ctx, CreateRequest{Number: "201", RoomTypeID: "rt"})
	require.NoError(t, err)

	dirty, err := tr.MarkDirty(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, PhysicalVacantDirty, dirty.Physical)
	assert.Equal(t, r.Version+1, dirty.Version)

	blocked, err := tr.Block(ctx, r.ID, PhysicalOutOfOrder, "broken window")
	require.NoError(t, err)
	assert.Equal(t, "broken window", blocked.BlockReason)

	_, err = tr.CompleteHousekeeping(ctx, r.ID, HousekeepingClean)
	assert.ErrorIs(t, err, ErrRoomBlocked)

	_, err = tr.Unblock(ctx, r.ID)
	require.NoError(t, err)

	clean, err := tr.CompleteHousekeeping(ctx, r.ID, HousekeepingInspected)
	require.NoError(t, err)
	assert.True(t, clean.Ready())

	got, err := tr.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, clean.Version, got.Version)
	assert.Len(t, rec.OfType(event.RoomStatusChanged), 4)
}

func TestTrackerPersistFailureLeavesRoomUnchanged(t *testing.T) {
	ctx := context.Background()
	tr, p, _ := newTracker(t)

	r, err := tr.Register(ctx, CreateRequest{Number: "301", RoomTypeID: "rt"})
	require.NoError(t, err)

	p.fail = errors.New("db down")
	_, err = tr.MarkDirty(ctx, r.ID)
	require.Error(t, err)

	got, err := tr.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, PhysicalVacantClean, got.Physical)
	assert.Equal(t, r.Version, got.Version)
}

func TestTrackerBusy(t *testing.T) {
	ctx := context.Background()
	locks := keylock.New(20 * time.Millisecond)
	tr := NewTracker(locks, &memPersister{}, knownTypes{"rt": true}, nil,
		clock.At(bizdate.MustParse("2025-07-01")), zap.NewNop())

	r, err := tr.Register(ctx, CreateRequest{Number: "401", RoomTypeID: "rt"})
	require.NoError(t, err)

	unlock, err := locks.Acquire(ctx, Key(r.ID))
	require.NoError(t, err)
	defer unlock()

	_, err = tr.MarkDirty(ctx, r.ID)
	assert.True(t, keylock.IsBusy(err))
}
