package reservation

import (
	"net/http"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, apperror.KindNotFound, "reservation not found")
	ErrInvalidTransition  = apperror.New(http.StatusConflict, apperror.KindInvalidTransition, "transition not allowed from current status")
	ErrGuaranteeRequired  = apperror.New(http.StatusPaymentRequired, apperror.KindGuaranteeRequired, "payment guarantee or authorized credit required")
	ErrGuestRequired      = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "guest name is required")
	ErrInvalidOccupancy   = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "occupancy must be between 1 and the room type maximum")
	ErrCheckInPast        = apperror.New(http.StatusBadRequest, apperror.KindInvalidDateRange, "check-in date is in the past")
	ErrRatePlanMismatch   = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "rate plan does not belong to the room type")
	ErrRoomTypeMismatch   = apperror.New(http.StatusConflict, apperror.KindRoomNotReady, "room belongs to a different room type")
	ErrNoRoomAssigned     = apperror.New(http.StatusConflict, apperror.KindRoomNotReady, "no room assigned")
	ErrNotArrived         = apperror.New(http.StatusConflict, apperror.KindInvalidTransition, "check-in is only possible from the check-in date until check-out")
	ErrNoShowTooEarly     = apperror.New(http.StatusConflict, apperror.KindInvalidTransition, "check-in date has not fully elapsed")
	ErrCityLedgerRequired = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "balance forward requires a city-ledger account")
	ErrUnknownCityLedger  = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "unknown city-ledger account")
	ErrInvalidPayment     = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "invalid payment status")
	ErrInvalidDiscount    = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "discount must be between zero and the stay total")
	ErrDuplicateBooking   = apperror.New(http.StatusConflict, apperror.KindChannelConflict, "external booking already recorded")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked-in"
	StatusCheckedOut Status = "checked-out"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCheckedOut || s == StatusCancelled || s == StatusNoShow
}

// PaymentStatus is reported by the external payment gateway.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentPaid       PaymentStatus = "paid"
	PaymentRefunded   PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentAuthorized, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

// BillingPolicy decides when room nights reach the folio.
type BillingPolicy string

const (
	// BillingPrebill posts every night at check-in.
	BillingPrebill BillingPolicy = "prebill"
	// BillingNightly posts the first night at check-in and the rest during night audit.
	BillingNightly BillingPolicy = "nightly"
)

// SourceDirect marks reservations made by the front desk.
const SourceDirect = "direct"

// Settings are property-wide parameters.
type Settings struct {
	TaxRate           decimal.Decimal
	ServiceChargeRate decimal.Decimal
	Billing           BillingPolicy
	// Location is the property's time zone; business dates are taken in it.
	Location *time.Location
	// CityLedgerAccounts, when set, limits which accounts may carry credit.
	CityLedgerAccounts []string
}

// KnownAccount reports whether a city-ledger account may be used.
func (s Settings) KnownAccount(account string) bool {
	return len(s.CityLedgerAccounts) == 0 || slices.Contains(s.CityLedgerAccounts, account)
}

type Guest struct {
	Name  string
	Email string
	Phone string
}

type Occupancy struct {
	Adults   int
	Children int
}

func (o Occupancy) Total() int {
	return o.Adults + o.Children
}

// Reservation is a guest's claim on one unit of a room type for a stay.
type Reservation struct {
	ID               string
	ConfirmationCode string
	Guest            Guest
	RoomTypeID       string
	RatePlanCode     string
	RoomID           string
	CheckIn          bizdate.Date
	CheckOut         bizdate.Date
	// CommittedTo ends the range [CheckIn, CommittedTo) still held in inventory.
	CommittedTo       bizdate.Date
	Occupancy         Occupancy
	Status            Status
	PaymentStatus     PaymentStatus
	CityLedgerAccount string
	// Rate is the nightly rate; Rates are the tax and service-charge rates
	// locked when the booking was committed.
	Rate         decimal.Decimal
	Rates        ledger.Rates
	Discount     decimal.Decimal
	Total        decimal.Decimal
	Billing      BillingPolicy
	Cancellation roomtype.CancellationPolicy
	Source       string
	ExternalRef  string
	Overbooked   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CheckedInAt  *time.Time
	ClosedAt     *time.Time
	Version      int64
}

// Nights returns the length of stay.
func (r *Reservation) Nights() int {
	return bizdate.Nights(r.CheckIn, r.CheckOut)
}

// Guaranteed reports whether payment is secured or credit authorized.
func (r *Reservation) Guaranteed() bool {
	return r.PaymentStatus == PaymentAuthorized || r.PaymentStatus == PaymentPaid || r.CityLedgerAccount != ""
}

// Filter defines parameters for listing reservations.
type Filter struct {
	Status     string
	RoomTypeID string
	Source     string
	// Date selects stays in house on that night.
	Date      *bizdate.Date
	Page      int
	PageSize  int
	SortOrder string
}

// StayTotal computes rate × nights plus derived tax and service charge per
// night, less the discount. Each night's derived amounts are rounded as the
// ledger rounds them so the folio agrees with the quote.
func StayTotal(rate decimal.Decimal, nights int, rates ledger.Rates, discount decimal.Decimal) decimal.Decimal {
	tax, service := rates.Derive(rate)
	perNight := rate.Add(tax).Add(service)
	return perNight.Mul(decimal.NewFromInt(int64(nights))).Sub(discount)
}
