package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
)

type TransactionResponse struct {
	ID          string          `json:"id"`
	Seq         int64           `json:"seq"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
	ParentID    string          `json:"parent_id,omitempty"`
	PostedAt    time.Time       `json:"posted_at"`
}

func NewTransactionResponse(tx *ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          tx.ID,
		Seq:         tx.Seq,
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		Description: tx.Description,
		Reference:   tx.Reference,
		ParentID:    tx.ParentID,
		PostedAt:    tx.PostedAt,
	}
}

type TotalsResponse struct {
	Charges  decimal.Decimal `json:"charges"`
	Payments decimal.Decimal `json:"payments"`
	Credits  decimal.Decimal `json:"credits"`
	Balance  decimal.Decimal `json:"balance"`
}

type FolioResponse struct {
	ID                string                `json:"id"`
	ReservationID     string                `json:"reservation_id"`
	Status            string                `json:"status"`
	TaxRate           decimal.Decimal       `json:"tax_rate"`
	ServiceChargeRate decimal.Decimal       `json:"service_charge_rate"`
	CityLedgerAccount string                `json:"city_ledger_account,omitempty"`
	OpenedAt          time.Time             `json:"opened_at"`
	ClosedAt          *time.Time            `json:"closed_at,omitempty"`
	Transactions      []TransactionResponse `json:"transactions"`
	Totals            TotalsResponse        `json:"totals"`
}

// NewFolioResponse renders a folio view. It is shared with the reservation routes.
func NewFolioResponse(v *ledger.FolioView) FolioResponse {
	txs := make([]TransactionResponse, len(v.Transactions))
	for i := range v.Transactions {
		txs[i] = NewTransactionResponse(&v.Transactions[i])
	}
	f := v.Folio
	return FolioResponse{
		ID:                f.ID,
		ReservationID:     f.ReservationID,
		Status:            string(f.Status),
		TaxRate:           f.Rates.Tax,
		ServiceChargeRate: f.Rates.ServiceCharge,
		CityLedgerAccount: f.CityLedgerAccount,
		OpenedAt:          f.OpenedAt,
		ClosedAt:          f.ClosedAt,
		Transactions:      txs,
		Totals: TotalsResponse{
			Charges:  v.Totals.Charges,
			Payments: v.Totals.Payments,
			Credits:  v.Totals.Credits,
			Balance:  v.Totals.Balance,
		},
	}
}

type PostRequest struct {
	Type        string          `json:"type" binding:"required,oneof=room_charge fb_charge misc_charge penalty refund payment adjustment"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"max=200"`
	Reference   string          `json:"reference" binding:"max=100"`
}
