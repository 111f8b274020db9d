package http

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/request"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
)

// ListRoomTypesRequest defines query parameters for listing room types.
type ListRoomTypesRequest struct {
	request.ListParams
	SortBy string `form:"sort_by" binding:"omitempty,oneof=code name created_at"`
}

type RoomTypeResponse struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	MaxOccupancy   int             `json:"max_occupancy"`
	BaseRate       decimal.Decimal `json:"base_rate"`
	TotalInventory int             `json:"total_inventory"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func NewResponse(rt *roomtype.RoomType) RoomTypeResponse {
	return RoomTypeResponse{
		ID:             rt.ID,
		Code:           rt.Code,
		Name:           rt.Name,
		Description:    rt.Description,
		MaxOccupancy:   rt.MaxOccupancy,
		BaseRate:       rt.BaseRate,
		TotalInventory: rt.TotalInventory,
		CreatedAt:      rt.CreatedAt,
		UpdatedAt:      rt.UpdatedAt,
	}
}

type CreateRequest struct {
	Code           string          `json:"code" binding:"required,min=1,max=20"`
	Name           string          `json:"name" binding:"required,min=1,max=100"`
	Description    string          `json:"description"`
	MaxOccupancy   int             `json:"max_occupancy" binding:"required,min=1"`
	BaseRate       decimal.Decimal `json:"base_rate"`
	TotalInventory int             `json:"total_inventory" binding:"min=0"`
}

type UpdateRequest struct {
	Name           *string          `json:"name" binding:"omitempty,min=1,max=100"`
	Description    *string          `json:"description"`
	MaxOccupancy   *int             `json:"max_occupancy" binding:"omitempty,min=1"`
	BaseRate       *decimal.Decimal `json:"base_rate"`
	TotalInventory *int             `json:"total_inventory" binding:"omitempty,min=0"`
}

type RestrictionsBody struct {
	MinStay        int   `json:"min_stay" binding:"min=0"`
	MaxStay        int   `json:"max_stay" binding:"min=0"`
	MinAdvanceDays int   `json:"min_advance_days" binding:"min=0"`
	MaxAdvanceDays int   `json:"max_advance_days" binding:"min=0"`
	DaysOfWeek     []int `json:"days_of_week" binding:"dive,min=0,max=6"`
}

type CancellationBody struct {
	FreeCancelDays      int `json:"free_cancel_days" binding:"min=0"`
	PenaltyNights       int `json:"penalty_nights" binding:"min=0"`
	NoShowPenaltyNights int `json:"no_show_penalty_nights" binding:"min=0"`
}

type CreateRatePlanRequest struct {
	Code         string           `json:"code" binding:"required,min=1,max=20"`
	Name         string           `json:"name" binding:"required,min=1,max=100"`
	BaseRate     decimal.Decimal  `json:"base_rate"`
	Restrictions RestrictionsBody `json:"restrictions"`
	Cancellation CancellationBody `json:"cancellation"`
	ValidFrom    *bizdate.Date    `json:"valid_from"`
	ValidTo      *bizdate.Date    `json:"valid_to"`
}

// Validate performs custom validation for CreateRatePlanRequest.
func (r *CreateRatePlanRequest) Validate() error {
	if r.BaseRate.IsNegative() {
		return errors.New("base_rate cannot be negative")
	}
	return nil
}

func (r *CreateRatePlanRequest) toDomain(roomTypeID string) roomtype.CreateRatePlanRequest {
	days := make([]time.Weekday, len(r.Restrictions.DaysOfWeek))
	for i, d := range r.Restrictions.DaysOfWeek {
		days[i] = time.Weekday(d)
	}
	return roomtype.CreateRatePlanRequest{
		Code:       r.Code,
		Name:       r.Name,
		RoomTypeID: roomTypeID,
		BaseRate:   r.BaseRate,
		Restrictions: roomtype.Restrictions{
			MinStay:        r.Restrictions.MinStay,
			MaxStay:        r.Restrictions.MaxStay,
			MinAdvanceDays: r.Restrictions.MinAdvanceDays,
			MaxAdvanceDays: r.Restrictions.MaxAdvanceDays,
			DaysOfWeek:     days,
		},
		Cancellation: roomtype.CancellationPolicy{
			FreeCancelDays:      r.Cancellation.FreeCancelDays,
			PenaltyNights:       r.Cancellation.PenaltyNights,
			NoShowPenaltyNights: r.Cancellation.NoShowPenaltyNights,
		},
		ValidFrom: r.ValidFrom,
		ValidTo:   r.ValidTo,
	}
}

type RatePlanResponse struct {
	ID           string           `json:"id"`
	Code         string           `json:"code"`
	Name         string           `json:"name"`
	RoomTypeID   string           `json:"room_type_id"`
	BaseRate     decimal.Decimal  `json:"base_rate"`
	Restrictions RestrictionsBody `json:"restrictions"`
	Cancellation CancellationBody `json:"cancellation"`
	ValidFrom    *bizdate.Date    `json:"valid_from,omitempty"`
	ValidTo      *bizdate.Date    `json:"valid_to,omitempty"`
	Active       bool             `json:"active"`
	CreatedAt    time.Time        `json:"created_at"`
}

func NewRatePlanResponse(p *roomtype.RatePlan) RatePlanResponse {
	days := make([]int, len(p.Restrictions.DaysOfWeek))
	for i, d := range p.Restrictions.DaysOfWeek {
		days[i] = int(d)
	}
	return RatePlanResponse{
		ID:         p.ID,
		Code:       p.Code,
		Name:       p.Name,
		RoomTypeID: p.RoomTypeID,
		BaseRate:   p.BaseRate,
		Restrictions: RestrictionsBody{
			MinStay:        p.Restrictions.MinStay,
			MaxStay:        p.Restrictions.MaxStay,
			MinAdvanceDays: p.Restrictions.MinAdvanceDays,
			MaxAdvanceDays: p.Restrictions.MaxAdvanceDays,
			DaysOfWeek:     days,
		},
		Cancellation: CancellationBody{
			FreeCancelDays:      p.Cancellation.FreeCancelDays,
			PenaltyNights:       p.Cancellation.PenaltyNights,
			NoShowPenaltyNights: p.Cancellation.NoShowPenaltyNights,
		},
		ValidFrom: p.ValidFrom,
		ValidTo:   p.ValidTo,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
	}
}

type ListRatePlansRequest struct {
	RoomTypeID string `form:"room_type_id" binding:"omitempty,uuid"`
}
