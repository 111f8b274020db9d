package http

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/request"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
)

type ListReservationsRequest struct {
	request.ListParams
	Status     string `form:"status" binding:"omitempty,oneof=pending confirmed checked-in checked-out cancelled no-show"`
	RoomTypeID string `form:"room_type_id" binding:"omitempty,uuid"`
	Source     string `form:"source"`
	Date       string `form:"date"`
}

type GuestBody struct {
	Name  string `json:"name" binding:"required,min=1,max=200"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone" binding:"max=50"`
}

type CreateRequest struct {
	Guest             GuestBody       `json:"guest" binding:"required"`
	RoomTypeID        string          `json:"room_type_id" binding:"required,uuid"`
	CheckIn           bizdate.Date    `json:"check_in"`
	CheckOut          bizdate.Date    `json:"check_out"`
	Adults            int             `json:"adults" binding:"min=0"`
	Children          int             `json:"children" binding:"min=0"`
	RatePlanCode      string          `json:"rate_plan_code"`
	PaymentStatus     string          `json:"payment_status" binding:"omitempty,oneof=pending authorized paid"`
	CityLedgerAccount string          `json:"city_ledger_account"`
	Discount          decimal.Decimal `json:"discount"`
}

// Validate performs custom validation for CreateRequest.
func (r *CreateRequest) Validate() error {
	if r.Discount.IsNegative() {
		return errors.New("discount cannot be negative")
	}
	return nil
}

func (r *CreateRequest) toDomain() reservation.CreateRequest {
	adults := r.Adults
	if adults == 0 {
		adults = 1
	}
	return reservation.CreateRequest{
		Guest: reservation.Guest{
			Name:  r.Guest.Name,
			Email: r.Guest.Email,
			Phone: r.Guest.Phone,
		},
		RoomTypeID:        r.RoomTypeID,
		CheckIn:           r.CheckIn,
		CheckOut:          r.CheckOut,
		Occupancy:         reservation.Occupancy{Adults: adults, Children: r.Children},
		RatePlanCode:      r.RatePlanCode,
		PaymentStatus:     reservation.PaymentStatus(r.PaymentStatus),
		CityLedgerAccount: r.CityLedgerAccount,
		Discount:          r.Discount,
	}
}

type ReservationResponse struct {
	ID                string          `json:"id"`
	ConfirmationCode  string          `json:"confirmation_code"`
	Guest             GuestBody       `json:"guest"`
	RoomTypeID        string          `json:"room_type_id"`
	RatePlanCode      string          `json:"rate_plan_code,omitempty"`
	RoomID            string          `json:"room_id,omitempty"`
	CheckIn           bizdate.Date    `json:"check_in"`
	CheckOut          bizdate.Date    `json:"check_out"`
	Nights            int             `json:"nights"`
	Adults            int             `json:"adults"`
	Children          int             `json:"children"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	CityLedgerAccount string          `json:"city_ledger_account,omitempty"`
	Rate              decimal.Decimal `json:"rate"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	ServiceChargeRate decimal.Decimal `json:"service_charge_rate"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	Billing           string          `json:"billing"`
	Source            string          `json:"source"`
	ExternalRef       string          `json:"external_ref,omitempty"`
	Overbooked        bool            `json:"overbooked"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CheckedInAt       *time.Time      `json:"checked_in_at,omitempty"`
	ClosedAt          *time.Time      `json:"closed_at,omitempty"`
}

func NewResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:               r.ID,
		ConfirmationCode: r.ConfirmationCode,
		Guest: GuestBody{
			Name:  r.Guest.Name,
			Email: r.Guest.Email,
			Phone: r.Guest.Phone,
		},
		RoomTypeID:        r.RoomTypeID,
		RatePlanCode:      r.RatePlanCode,
		RoomID:            r.RoomID,
		CheckIn:           r.CheckIn,
		CheckOut:          r.CheckOut,
		Nights:            r.Nights(),
		Adults:            r.Occupancy.Adults,
		Children:          r.Occupancy.Children,
		Status:            string(r.Status),
		PaymentStatus:     string(r.PaymentStatus),
		CityLedgerAccount: r.CityLedgerAccount,
		Rate:              r.Rate,
		TaxRate:           r.Rates.Tax,
		ServiceChargeRate: r.Rates.ServiceCharge,
		Discount:          r.Discount,
		Total:             r.Total,
		Billing:           string(r.Billing),
		Source:            r.Source,
		ExternalRef:       r.ExternalRef,
		Overbooked:        r.Overbooked,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		CheckedInAt:       r.CheckedInAt,
		ClosedAt:          r.ClosedAt,
	}
}

type ByCodeRequest struct {
	Code string `uri:"code" binding:"required,min=1,max=20"`
}

type AssignRoomRequest struct {
	RoomID string `json:"room_id" binding:"required,uuid"`
	// Override permits a room still awaiting housekeeping.
	Override bool `json:"override"`
}

type CheckOutRequest struct {
	BalanceForward    bool   `json:"balance_forward"`
	CityLedgerAccount string `json:"city_ledger_account"`
}

type PaymentRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required,oneof=pending authorized paid refunded"`
}

type NightAuditRequest struct {
	Night bizdate.Date `json:"night"`
}

type NightAuditResponse struct {
	Night   bizdate.Date `json:"night"`
	Posted  int          `json:"posted"`
	Skipped int          `json:"skipped"`
}
