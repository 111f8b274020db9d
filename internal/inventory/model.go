package inventory

import (
	"net/http"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
)

var (
	ErrInvalidDateRange     = apperror.New(http.StatusBadRequest, apperror.KindInvalidDateRange, "check-out date must be after check-in date")
	ErrCapacityExhausted    = apperror.New(http.StatusConflict, apperror.KindCapacityExhausted, "no inventory available for the requested dates")
	ErrRestrictionViolation = apperror.New(http.StatusUnprocessableEntity, apperror.KindRestrictionViolation, "inventory restrictions violated")
	ErrUnknownRoomType      = apperror.New(http.StatusNotFound, apperror.KindNotFound, "room type has no inventory calendar")
	ErrNothingCommitted     = apperror.New(http.StatusConflict, apperror.KindInvalidTransition, "no committed inventory to release")
	ErrInvalidOverride      = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "invalid inventory override")
	ErrTotalBelowCommitted  = apperror.New(http.StatusConflict, apperror.KindInvalidInput, "total inventory below committed units")
)

// Restriction rule names reported in violations.
const (
	RuleClosedToArrival   = "closed_to_arrival"
	RuleClosedToDeparture = "closed_to_departure"
	RuleMinLOS            = "min_los"
	RuleMaxLOS            = "max_los"
	RuleNoInventory       = "no_inventory"
)

// Override holds the administrative restrictions of one date. Zero LOS means unbounded.
type Override struct {
	ClosedToArrival      bool
	ClosedToDeparture    bool
	MinLOS               int
	MaxLOS               int
	OverbookingAllowance int
}

func (o Override) valid() bool {
	if o.MinLOS < 0 || o.MaxLOS < 0 || o.OverbookingAllowance < 0 {
		return false
	}
	return o.MaxLOS == 0 || o.MinLOS <= o.MaxLOS
}

// Day is the (RoomType, date) inventory cell.
type Day struct {
	RoomTypeID string
	Date       bizdate.Date
	Total      int
	Committed  int
	Override   Override
}

// Available returns units left for direct sale, never negative.
func (d Day) Available() int {
	return max(0, d.Total-d.Committed)
}

// Violation names a restriction that rejects a stay.
type Violation struct {
	Date bizdate.Date
	Rule string
}

// Availability answers a (RoomType, date range) query.
type Availability struct {
	RoomTypeID           string
	CheckIn              bizdate.Date
	CheckOut             bizdate.Date
	Available            bool
	UnitsByDate          map[bizdate.Date]int
	RestrictionsViolated []Violation
}

// CommitOptions tune PlanCommit.
type CommitOptions struct {
	// AllowOverbooking raises the per-date limit to total + overbooking allowance.
	AllowOverbooking bool
	// IgnoreRestrictions skips CTA, CTD and LOS checks for operator-accepted bookings.
	IgnoreRestrictions bool
}

// Change is a staged commit or release over a date range. It is produced by
// PlanCommit/PlanRelease and applied as a unit by Apply.
type Change struct {
	roomTypeID string
	from       bizdate.Date
	to         bizdate.Date
	delta      int
	days       []Day
}

// Days returns the cells as they will be after Apply.
func (c *Change) Days() []Day {
	if c == nil {
		return nil
	}
	out := make([]Day, len(c.days))
	copy(out, c.days)
	return out
}

// Empty reports whether applying the change is a no-op.
func (c *Change) Empty() bool {
	return c == nil || c.from >= c.to || c.delta == 0
}
