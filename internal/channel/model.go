package channel

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
)

var (
	ErrNotFound           = apperror.New(http.StatusNotFound, apperror.KindNotFound, "channel not found")
	ErrConflictNotFound   = apperror.New(http.StatusNotFound, apperror.KindNotFound, "channel conflict not found")
	ErrConflictResolved   = apperror.New(http.StatusConflict, apperror.KindInvalidTransition, "channel conflict already resolved")
	ErrChannelConflict    = apperror.New(http.StatusConflict, apperror.KindChannelConflict, "booking conflicts with available inventory")
	ErrInvalidSecret      = apperror.New(http.StatusUnauthorized, apperror.KindUnauthorized, "invalid channel secret")
	ErrChannelInactive    = apperror.New(http.StatusConflict, apperror.KindInvalidTransition, "channel is inactive")
	ErrCodeRequired       = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "channel code is required")
	ErrCodeTaken          = apperror.New(http.StatusConflict, apperror.KindInvalidInput, "channel code already in use")
	ErrInvalidKind        = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "invalid channel kind")
	ErrSecretTooShort     = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "channel secret must be at least 12 characters")
	ErrExternalRefMissing = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "external booking reference is required")
	ErrInvalidResolution  = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "resolution must be accept or reject")
	ErrNoFeed             = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "channel has no feed URL")
	ErrFeedUnavailable    = apperror.New(http.StatusBadGateway, apperror.KindInternal, "channel feed unavailable")
)

// Kind is the type of external booking source.
type Kind string

const (
	KindOTA       Kind = "ota"
	KindGDS       Kind = "gds"
	KindDirect    Kind = "direct"
	KindCorporate Kind = "corporate"
)

func (k Kind) Valid() bool {
	switch k {
	case KindOTA, KindGDS, KindDirect, KindCorporate:
		return true
	}
	return false
}

// Channel is an external booking source.
type Channel struct {
	ID           string
	Code         string
	Name         string
	Kind         Kind
	SecretHash   string
	FeedURL      string
	CallbackURL  string
	Active       bool
	LastPolledAt *time.Time
	CreatedAt    time.Time
}

// ExternalBooking is a booking as reported by a channel.
type ExternalBooking struct {
	ExternalRef  string          `json:"external_ref"`
	RoomTypeCode string          `json:"room_type_code"`
	CheckIn      bizdate.Date    `json:"check_in"`
	CheckOut     bizdate.Date    `json:"check_out"`
	GuestName    string          `json:"guest_name"`
	GuestEmail   string          `json:"guest_email"`
	GuestPhone   string          `json:"guest_phone"`
	Adults       int             `json:"adults"`
	Children     int             `json:"children"`
	Rate         decimal.Decimal `json:"rate"`
	// PaymentStatus is the guarantee the channel collected; empty means authorized.
	PaymentStatus reservation.PaymentStatus `json:"payment_status"`
	Cancelled     bool                      `json:"cancelled"`
}

type ConflictStatus string

const (
	ConflictOpen      ConflictStatus = "open"
	ConflictAccepted  ConflictStatus = "accepted"
	ConflictRejected  ConflictStatus = "rejected"
	ConflictWithdrawn ConflictStatus = "withdrawn"
)

// Conflict records an external booking that could not be committed. It stays
// open until an operator accepts or rejects it, or the channel withdraws it.
type Conflict struct {
	ID            string
	ChannelID     string
	ExternalRef   string
	Booking       ExternalBooking
	Kind          string
	Reason        string
	Status        ConflictStatus
	ReservationID string
	NotifyError   string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeConflict  Outcome = "conflict"
)

// SyncResult is a reservation or a conflict report.
type SyncResult struct {
	Outcome     Outcome
	Reservation *reservation.Reservation
	Conflict    *Conflict
}

type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// ConflictFilter defines parameters for listing conflicts.
type ConflictFilter struct {
	ChannelID string
	Status    string
	Page      int
	PageSize  int
}

// PollReport counts what one feed poll did.
type PollReport struct {
	ChannelID string
	Fetched   int
	Created   int
	Cancelled int
	Duplicate int
	Conflicts int
	Failed    int
}
