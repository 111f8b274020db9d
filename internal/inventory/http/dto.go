package http

import (
	"errors"
	"sort"

	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
)

type AvailabilityRequest struct {
	RoomTypeID string `form:"room_type_id" binding:"required,uuid"`
	CheckIn    string `form:"check_in" binding:"required"`
	CheckOut   string `form:"check_out" binding:"required"`
}

// Dates parses the query dates.
func (r *AvailabilityRequest) Dates() (bizdate.Date, bizdate.Date, error) {
	in, err := bizdate.Parse(r.CheckIn)
	if err != nil {
		return 0, 0, errors.New("check_in must be YYYY-MM-DD")
	}
	out, err := bizdate.Parse(r.CheckOut)
	if err != nil {
		return 0, 0, errors.New("check_out must be YYYY-MM-DD")
	}
	return in, out, nil
}

type DateUnits struct {
	Date  bizdate.Date `json:"date"`
	Units int          `json:"units"`
}

type ViolationResponse struct {
	Date bizdate.Date `json:"date"`
	Rule string       `json:"rule"`
}

type AvailabilityResponse struct {
	RoomTypeID           string              `json:"room_type_id"`
	CheckIn              bizdate.Date        `json:"check_in"`
	CheckOut             bizdate.Date        `json:"check_out"`
	Available            bool                `json:"available"`
	UnitsByDate          []DateUnits         `json:"units_by_date"`
	RestrictionsViolated []ViolationResponse `json:"restrictions_violated"`
}

func NewAvailabilityResponse(a *inventory.Availability) AvailabilityResponse {
	units := make([]DateUnits, 0, len(a.UnitsByDate))
	for d, n := range a.UnitsByDate {
		units = append(units, DateUnits{Date: d, Units: n})
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Date < units[j].Date })

	violations := make([]ViolationResponse, len(a.RestrictionsViolated))
	for i, v := range a.RestrictionsViolated {
		violations[i] = ViolationResponse{Date: v.Date, Rule: v.Rule}
	}

	return AvailabilityResponse{
		RoomTypeID:           a.RoomTypeID,
		CheckIn:              a.CheckIn,
		CheckOut:             a.CheckOut,
		Available:            a.Available,
		UnitsByDate:          units,
		RestrictionsViolated: violations,
	}
}

type OverrideRequest struct {
	RoomTypeID           string       `json:"room_type_id" binding:"required,uuid"`
	From                 bizdate.Date `json:"from"`
	Through              bizdate.Date `json:"through"`
	ClosedToArrival      bool         `json:"closed_to_arrival"`
	ClosedToDeparture    bool         `json:"closed_to_departure"`
	MinLOS               int          `json:"min_los" binding:"min=0"`
	MaxLOS               int          `json:"max_los" binding:"min=0"`
	OverbookingAllowance int          `json:"overbooking_allowance" binding:"min=0"`
}

type DaysRequest struct {
	RoomTypeID string `form:"room_type_id" binding:"required,uuid"`
	From       string `form:"from" binding:"required"`
	To         string `form:"to" binding:"required"`
}

type DayResponse struct {
	Date                 bizdate.Date `json:"date"`
	Total                int          `json:"total"`
	Committed            int          `json:"committed"`
	Available            int          `json:"available"`
	ClosedToArrival      bool         `json:"closed_to_arrival"`
	ClosedToDeparture    bool         `json:"closed_to_departure"`
	MinLOS               int          `json:"min_los"`
	MaxLOS               int          `json:"max_los"`
	OverbookingAllowance int          `json:"overbooking_allowance"`
}

func NewDayResponse(d inventory.Day) DayResponse {
	return DayResponse{
		Date:                 d.Date,
		Total:                d.Total,
		Committed:            d.Committed,
		Available:            d.Available(),
		ClosedToArrival:      d.Override.ClosedToArrival,
		ClosedToDeparture:    d.Override.ClosedToDeparture,
		MinLOS:               d.Override.MinLOS,
		MaxLOS:               d.Override.MaxLOS,
		OverbookingAllowance: d.Override.OverbookingAllowance,
	}
}
