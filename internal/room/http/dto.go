package http

import (
	"time"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/request"
	"github.com/nekogravitycat/hotel-pms-backend/internal/room"
)

type ListRoomsRequest struct {
	request.ListParams
	RoomTypeID   string `form:"room_type_id" binding:"omitempty,uuid"`
	Physical     string `form:"physical" binding:"omitempty,oneof=vacant-clean vacant-dirty occupied maintenance out-of-order"`
	Housekeeping string `form:"housekeeping" binding:"omitempty,oneof=clean dirty inspected maintenance"`
}

type RoomResponse struct {
	ID            string    `json:"id"`
	Number        string    `json:"number"`
	Floor         int       `json:"floor"`
	RoomTypeID    string    `json:"room_type_id"`
	Physical      string    `json:"physical_status"`
	Housekeeping  string    `json:"housekeeping_status"`
	Ready         bool      `json:"ready"`
	ReservationID string    `json:"reservation_id,omitempty"`
	BlockReason   string    `json:"block_reason,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewResponse(r *room.Room) RoomResponse {
	return RoomResponse{
		ID:            r.ID,
		Number:        r.Number,
		Floor:         r.Floor,
		RoomTypeID:    r.RoomTypeID,
		Physical:      string(r.Physical),
		Housekeeping:  string(r.Housekeeping),
		Ready:         r.Ready(),
		ReservationID: r.ReservationID,
		BlockReason:   r.BlockReason,
		UpdatedAt:     r.UpdatedAt,
	}
}

type CreateRequest struct {
	Number     string `json:"number" binding:"required,min=1,max=20"`
	Floor      int    `json:"floor"`
	RoomTypeID string `json:"room_type_id" binding:"required,uuid"`
}

type HousekeepingRequest struct {
	Result string `json:"result" binding:"required,oneof=clean inspected"`
}

type BlockRequest struct {
	Status string `json:"status" binding:"required,oneof=maintenance out-of-order"`
	Reason string `json:"reason" binding:"max=200"`
}
