package room

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
)

var (
	ErrNotFound          = apperror.New(http.StatusNotFound, apperror.KindNotFound, "room not found")
	ErrRoomNotReady      = apperror.New(http.StatusConflict, apperror.KindRoomNotReady, "room is not vacant-clean")
	ErrRoomBlocked       = apperror.New(http.StatusConflict, apperror.KindRoomNotReady, "room is in maintenance or out of order")
	ErrRoomTaken         = apperror.New(http.StatusConflict, apperror.KindRoomNotReady, "room is bound to another reservation")
	ErrNumberRequired    = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "room number is required")
	ErrNumberTaken       = apperror.New(http.StatusConflict, apperror.KindInvalidInput, "room number already in use")
	ErrInvalidStatus     = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "invalid room status")
	ErrInvalidTransition = apperror.New(http.StatusConflict, apperror.KindInvalidTransition, "room status transition not allowed")
	ErrUnknownRoomType   = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "unknown room type")
)

// PhysicalStatus is the occupancy axis of a room.
type PhysicalStatus string

const (
	PhysicalVacantClean PhysicalStatus = "vacant-clean"
	PhysicalVacantDirty PhysicalStatus = "vacant-dirty"
	PhysicalOccupied    PhysicalStatus = "occupied"
	PhysicalMaintenance PhysicalStatus = "maintenance"
	PhysicalOutOfOrder  PhysicalStatus = "out-of-order"
)

// HousekeepingStatus is the cleaning axis of a room.
type HousekeepingStatus string

const (
	HousekeepingClean       HousekeepingStatus = "clean"
	HousekeepingDirty       HousekeepingStatus = "dirty"
	HousekeepingInspected   HousekeepingStatus = "inspected"
	HousekeepingMaintenance HousekeepingStatus = "maintenance"
)

func (s PhysicalStatus) Valid() bool {
	switch s {
	case PhysicalVacantClean, PhysicalVacantDirty, PhysicalOccupied, PhysicalMaintenance, PhysicalOutOfOrder:
		return true
	}
	return false
}

func (s HousekeepingStatus) Valid() bool {
	switch s {
	case HousekeepingClean, HousekeepingDirty, HousekeepingInspected, HousekeepingMaintenance:
		return true
	}
	return false
}

// Blocked reports whether an administrative block is in force.
func (s PhysicalStatus) Blocked() bool {
	return s == PhysicalMaintenance || s == PhysicalOutOfOrder
}

// Room is one physical unit.
type Room struct {
	ID           string
	Number       string
	Floor        int
	RoomTypeID   string
	Physical     PhysicalStatus
	Housekeeping HousekeepingStatus
	// ReservationID is the one active reservation bound to the room, if any.
	ReservationID string
	// BlockedFrom remembers the physical status that a block replaced.
	BlockedFrom PhysicalStatus
	BlockReason string
	Version     int64
	UpdatedAt   time.Time
}

// Filter defines parameters for listing rooms.
type Filter struct {
	RoomTypeID   string
	Physical     string
	Housekeeping string
	Page         int
	PageSize     int
}

// Ready reports whether the room can receive a check-in.
func (r Room) Ready() bool {
	return r.Physical == PhysicalVacantClean &&
		(r.Housekeeping == HousekeepingClean || r.Housekeeping == HousekeepingInspected)
}

// Assign binds the room to a reservation. Unless override is set the room must be Ready.
// Blocked and occupied rooms are never assignable.
func (r Room) Assign(reservationID string, override bool) (Room, error) {
	if r.ReservationID != "" && r.ReservationID != reservationID {
		return r, ErrRoomTaken
	}
	if r.Physical.Blocked() {
		return r, ErrRoomBlocked
	}
	if r.Physical == PhysicalOccupied {
		return r, ErrRoomNotReady
	}
	if !override && !r.Ready() {
		return r, ErrRoomNotReady
	}
	r.ReservationID = reservationID
	return r, nil
}

// Unassign drops a reservation binding that has not checked in.
func (r Room) Unassign(reservationID string) Room {
	if r.ReservationID == reservationID && r.Physical != PhysicalOccupied {
		r.ReservationID = ""
	}
	return r
}

// Occupy moves a ready room bound to reservationID to occupied.
func (r Room) Occupy(reservationID string) (Room, error) {
	if r.ReservationID != reservationID {
		return r, ErrRoomTaken
	}
	if r.Physical.Blocked() {
		return r, ErrRoomBlocked
	}
	if !r.Ready() {
		return r, ErrRoomNotReady
	}
	r.Physical = PhysicalOccupied
	return r, nil
}

// Vacate releases an occupied room to vacant-dirty after check-out.
func (r Room) Vacate(reservationID string) (Room, error) {
	if r.ReservationID != reservationID {
		return r, ErrRoomTaken
	}
	r.ReservationID = ""
	switch r.Physical {
	case PhysicalOccupied:
		r.Physical = PhysicalVacantDirty
		r.Housekeeping = HousekeepingDirty
	case PhysicalMaintenance, PhysicalOutOfOrder:
		// The block stays; it lifts to vacant-dirty.
		r.BlockedFrom = PhysicalVacantDirty
	default:
		return r, ErrInvalidTransition
	}
	return r, nil
}

// CompleteHousekeeping records a finished housekeeping task (clean or inspected).
func (r Room) CompleteHousekeeping(result HousekeepingStatus) (Room, error) {
	if result != HousekeepingClean && result != HousekeepingInspected {
		return r, ErrInvalidStatus
	}
	if r.Physical.Blocked() {
		return r, ErrRoomBlocked
	}
	if r.Physical == PhysicalVacantDirty {
		r.Physical = PhysicalVacantClean
	}
	r.Housekeeping = result
	return r, nil
}

// MarkDirty flags a room as needing service.
func (r Room) MarkDirty() (Room, error) {
	if r.Physical.Blocked() {
		return r, ErrRoomBlocked
	}
	if r.Physical == PhysicalVacantClean {
		r.Physical = PhysicalVacantDirty
	}
	r.Housekeeping = HousekeepingDirty
	return r, nil
}

// Block places the room in maintenance or out-of-order from any state.
func (r Room) Block(status PhysicalStatus, reason string) (Room, error) {
	if !status.Blocked() {
		return r, ErrInvalidStatus
	}
	if !r.Physical.Blocked() {
		r.BlockedFrom = r.Physical
	}
	r.Physical = status
	r.Housekeeping = HousekeepingMaintenance
	r.BlockReason = reason
	return r, nil
}

// Unblock lifts a block. An occupied room returns to occupied; any other room
// returns as vacant-dirty and must be cleaned before it can be sold again.
func (r Room) Unblock() (Room, error) {
	if !r.Physical.Blocked() {
		return r, ErrInvalidTransition
	}
	if r.BlockedFrom == PhysicalOccupied && r.ReservationID != "" {
		r.Physical = PhysicalOccupied
	} else {
		r.Physical = PhysicalVacantDirty
	}
	r.Housekeeping = HousekeepingDirty
	r.BlockedFrom = ""
	r.BlockReason = ""
	return r, nil
}
