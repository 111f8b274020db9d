package roomtype

import (
	"net/http"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
)

var (
	ErrNotFound             = apperror.New(http.StatusNotFound, apperror.KindNotFound, "room type not found")
	ErrRatePlanNotFound     = apperror.New(http.StatusNotFound, apperror.KindNotFound, "rate plan not found")
	ErrNameRequired         = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "name is required")
	ErrCodeRequired         = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "code is required")
	ErrCodeTaken            = apperror.New(http.StatusConflict, apperror.KindInvalidInput, "code already in use")
	ErrInvalidOccupancy     = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "max occupancy must be positive")
	ErrInvalidInventory     = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "total inventory cannot be negative")
	ErrInvalidRate          = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "rate cannot be negative")
	ErrInvalidRestrictions  = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "invalid rate plan restrictions")
	ErrRestrictionViolation = apperror.New(http.StatusUnprocessableEntity, apperror.KindRestrictionViolation, "rate plan restrictions violated")
)

// RoomType is a class of physical rooms sharing rate and capacity.
type RoomType struct {
	ID             string
	Code           string
	Name           string
	Description    string
	MaxOccupancy   int
	BaseRate       decimal.Decimal
	TotalInventory int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Restrictions limit which stays a rate plan may sell.
// Zero values mean "no limit".
type Restrictions struct {
	MinStay        int
	MaxStay        int
	MinAdvanceDays int
	MaxAdvanceDays int
	// DaysOfWeek lists permitted arrival weekdays; empty permits all.
	DaysOfWeek []time.Weekday
}

// CancellationPolicy is evaluated on cancel and no-show.
type CancellationPolicy struct {
	// FreeCancelDays is how many days before arrival a cancellation stays free.
	// Zero means every cancellation is charged PenaltyNights.
	FreeCancelDays      int
	PenaltyNights       int
	NoShowPenaltyNights int
}

// RatePlan prices a room type under a set of restrictions.
type RatePlan struct {
	ID           string
	Code         string
	Name         string
	RoomTypeID   string
	BaseRate     decimal.Decimal
	Restrictions Restrictions
	Cancellation CancellationPolicy
	ValidFrom    *bizdate.Date
	ValidTo      *bizdate.Date
	Active       bool
	CreatedAt    time.Time
}

// Filter defines parameters for listing room types.
type Filter struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Rate returns the nightly rate the plan sells at.
func (p *RatePlan) Rate(rt *RoomType) decimal.Decimal {
	if p.BaseRate.IsPositive() {
		return p.BaseRate
	}
	return rt.BaseRate
}

// Violations lists every restriction the stay breaks. today is the booking date.
func (p *RatePlan) Violations(checkIn, checkOut, today bizdate.Date) []string {
	var out []string
	r := p.Restrictions
	nights := bizdate.Nights(checkIn, checkOut)
	advance := int(checkIn - today)

	if !p.Active {
		out = append(out, "rate plan is not active")
	}
	if r.MinStay > 0 && nights < r.MinStay {
		out = append(out, "stay shorter than minimum stay")
	}
	if r.MaxStay > 0 && nights > r.MaxStay {
		out = append(out, "stay longer than maximum stay")
	}
	if r.MinAdvanceDays > 0 && advance < r.MinAdvanceDays {
		out = append(out, "booked inside minimum advance window")
	}
	if r.MaxAdvanceDays > 0 && advance > r.MaxAdvanceDays {
		out = append(out, "booked beyond maximum advance window")
	}
	if len(r.DaysOfWeek) > 0 && !slices.Contains(r.DaysOfWeek, checkIn.Weekday()) {
		out = append(out, "arrival day not permitted")
	}
	if p.ValidFrom != nil && checkIn < *p.ValidFrom {
		out = append(out, "stay starts before rate plan validity")
	}
	if p.ValidTo != nil && checkOut.AddDays(-1) > *p.ValidTo {
		out = append(out, "stay ends after rate plan validity")
	}
	return out
}

// CancelPenaltyNights returns how many nights a cancellation made on today costs.
func (c CancellationPolicy) CancelPenaltyNights(checkIn, today bizdate.Date) int {
	if c.FreeCancelDays > 0 && int(checkIn-today) >= c.FreeCancelDays {
		return 0
	}
	return c.PenaltyNights
}

func (r Restrictions) validate() bool {
	if r.MinStay < 0 || r.MaxStay < 0 || r.MinAdvanceDays < 0 || r.MaxAdvanceDays < 0 {
		return false
	}
	if r.MaxStay > 0 && r.MinStay > r.MaxStay {
		return false
	}
	if r.MaxAdvanceDays > 0 && r.MinAdvanceDays > r.MaxAdvanceDays {
		return false
	}
	for _, d := range r.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return false
		}
	}
	return true
}
