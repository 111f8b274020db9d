package ledger

import (
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
)

var (
	ErrFolioNotFound      = apperror.New(http.StatusNotFound, apperror.KindNotFound, "folio not found")
	ErrFolioNotOpen       = apperror.New(http.StatusConflict, apperror.KindInvalidTransition, "folio is not open")
	ErrInvalidType        = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "invalid transaction type")
	ErrInvalidAmount      = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "amount must be positive")
	ErrDerivedType        = apperror.New(http.StatusBadRequest, apperror.KindInvalidInput, "tax and service charge are derived from room charges")
	ErrOutstandingBalance = apperror.New(http.StatusConflict, apperror.KindOutstandingBalance, "folio balance is not settled")
	ErrSettlementOnly     = apperror.New(http.StatusConflict, apperror.KindInvalidTransition, "penalty folio accepts only payments, refunds and adjustments")
)

// Type is the kind of a folio transaction.
type Type string

const (
	TypeRoomCharge    Type = "room_charge"
	TypeTax           Type = "tax"
	TypeServiceCharge Type = "service_charge"
	TypeFoodBeverage  Type = "fb_charge"
	TypeMisc          Type = "misc_charge"
	TypePenalty       Type = "penalty"
	TypeRefund        Type = "refund"
	TypePayment       Type = "payment"
	TypeAdjustment    Type = "adjustment"
	TypeTransfer      Type = "transfer"
)

// Class groups transaction types by their effect on the balance.
type Class int

const (
	ClassCharge Class = iota
	ClassPayment
	ClassCredit
)

func (t Type) Valid() bool {
	switch t {
	case TypeRoomCharge, TypeTax, TypeServiceCharge, TypeFoodBeverage, TypeMisc,
		TypePenalty, TypeRefund, TypePayment, TypeAdjustment, TypeTransfer:
		return true
	}
	return false
}

// Class reports how the type affects the balance. A refund returns money to
// the guest and so raises what the guest owes, like a charge.
func (t Type) Class() Class {
	switch t {
	case TypePayment:
		return ClassPayment
	case TypeAdjustment, TypeTransfer:
		return ClassCredit
	default:
		return ClassCharge
	}
}

type FolioStatus string

const (
	FolioOpen        FolioStatus = "open"
	FolioClosed      FolioStatus = "closed"
	FolioTransferred FolioStatus = "transferred"
)

// Rates are the tax and service-charge rates a folio derives postings with.
type Rates struct {
	Tax           decimal.Decimal
	ServiceCharge decimal.Decimal
}

// Folio is the financial account of one reservation. Its balance is never
// stored; it is always folded from the transactions.
type Folio struct {
	ID                string
	ReservationID     string
	Status            FolioStatus
	Rates             Rates
	CityLedgerAccount string
	OpenedAt          time.Time
	ClosedAt          *time.Time
	Version           int64
}

// Transaction is an immutable folio entry. Amount is always positive; its
// sign in the balance comes from the type.
type Transaction struct {
	ID          string
	FolioID     string
	Seq         int64
	Type        Type
	Amount      decimal.Decimal
	Description string
	Reference   string
	// ParentID links derived tax and service-charge entries to their room charge.
	ParentID string
	PostedAt time.Time
}

// Posting is a transaction request before it is numbered.
type Posting struct {
	Type        Type
	Amount      decimal.Decimal
	Description string
	Reference   string
}

type Totals struct {
	Charges  decimal.Decimal
	Payments decimal.Decimal
	Credits  decimal.Decimal
	Balance  decimal.Decimal
}

// Settled reports a zero balance.
func (t Totals) Settled() bool {
	return t.Balance.IsZero()
}

// Balance folds transactions ordered by posting time then sequence.
func Balance(txs []Transaction) Totals {
	ordered := make([]Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].PostedAt.Equal(ordered[j].PostedAt) {
			return ordered[i].PostedAt.Before(ordered[j].PostedAt)
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	t := Totals{Charges: decimal.Zero, Payments: decimal.Zero, Credits: decimal.Zero}
	for _, tx := range ordered {
		switch tx.Type.Class() {
		case ClassPayment:
			t.Payments = t.Payments.Add(tx.Amount)
		case ClassCredit:
			t.Credits = t.Credits.Add(tx.Amount)
		default:
			t.Charges = t.Charges.Add(tx.Amount)
		}
	}
	t.Balance = t.Charges.Sub(t.Payments).Sub(t.Credits)
	return t
}

// Derive returns the tax and service charge owed on a room-charge amount.
func (r Rates) Derive(amount decimal.Decimal) (tax, service decimal.Decimal) {
	return amount.Mul(r.Tax).Round(2), amount.Mul(r.ServiceCharge).Round(2)
}
