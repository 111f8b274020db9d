// Package store persists the in-memory state of the property engine.
package store

import (
	"context"

	"github.com/nekogravitycat/hotel-pms-backend/internal/channel"
	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
	"github.com/nekogravitycat/hotel-pms-backend/internal/room"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
)

// Store implements every domain persister and can reload a snapshot on startup.
type Store interface {
	roomtype.Persister
	inventory.Persister
	room.Persister
	ledger.Persister
	reservation.Persister
	channel.Persister

	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot is the full persisted state.
type Snapshot struct {
	RoomTypes    []*roomtype.RoomType
	RatePlans    []*roomtype.RatePlan
	Rooms        []room.Room
	Inventory    []inventory.Day
	Reservations []reservation.Reservation
	Folios       []ledger.Folio
	Transactions []ledger.Transaction
	Channels     []channel.Channel
	Conflicts    []channel.Conflict
}

// Nop discards every write. It backs the engine when no database is configured.
type Nop struct{}

func (Nop) SaveRoomType(context.Context, *roomtype.RoomType) error { return nil }
func (Nop) SaveRatePlan(context.Context, *roomtype.RatePlan) error { return nil }
func (Nop) SaveInventoryDays(context.Context, []inventory.Day) error { return nil }
func (Nop) SaveRooms(context.Context, ...room.Room) error { return nil }
func (Nop) SaveLedger(context.Context, []ledger.Folio, []ledger.Transaction) error { return nil }
func (Nop) Commit(context.Context, reservation.ChangeSet) error { return nil }
func (Nop) SaveChannel(context.Context, channel.Channel) error { return nil }
func (Nop) SaveConflict(context.Context, channel.Conflict) error { return nil }
func (Nop) Load(context.Context) (*Snapshot, error) { return &Snapshot{}, nil }

var (
	_ Store = Nop{}
	_ Store = (*Postgres)(nil)
)
