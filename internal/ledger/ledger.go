package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/metrics"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/keylock"
)

// Persister stores folios and appends transactions in one unit.
type Persister interface {
	SaveLedger(ctx context.Context, folios []Folio, txs []Transaction) error
}

// FolioView is a folio with its transactions and folded totals.
type FolioView struct {
	Folio        Folio
	Transactions []Transaction
	Totals       Totals
}

// Postings on a folio serialize with its reservation's lifecycle transitions.
func reservationKey(id string) string {
	return "res:" + id
}

// Ledger keeps every folio and its append-only transaction log.
type Ledger struct {
	mu            sync.RWMutex
	folios        map[string]*Folio
	txs           map[string][]Transaction // by folio ID
	byReservation map[string]string        // reservation ID -> folio ID
	seq           atomic.Int64

	locks     *keylock.Manager
	persister Persister
	publisher event.Publisher
	clock     clock.Clock
	logger    *zap.Logger
}

func New(locks *keylock.Manager, persister Persister, publisher event.Publisher, clk clock.Clock, logger *zap.Logger) *Ledger {
	return &Ledger{
		folios:        make(map[string]*Folio),
		txs:           make(map[string][]Transaction),
		byReservation: make(map[string]string),
		locks:         locks,
		persister:     persister,
		publisher:     publisher,
		clock:         clk,
		logger:        logger,
	}
}

// NewFolio stages an open folio for a reservation.
func (l *Ledger) NewFolio(reservationID string, rates Rates, cityLedgerAccount string) Folio {
	return Folio{
		ID:                uuid.NewString(),
		ReservationID:     reservationID,
		Status:            FolioOpen,
		Rates:             rates,
		CityLedgerAccount: cityLedgerAccount,
		OpenedAt:          l.clock.Now(),
		Version:           1,
	}
}

// Close stages a folio in a final status.
func (l *Ledger) Close(f Folio, status FolioStatus) Folio {
	now := l.clock.Now()
	f.Status = status
	f.ClosedAt = &now
	f.Version++
	return f
}

// Entries numbers postings for folio f. Each room charge is followed by its
// derived tax and service-charge entries computed with the folio's rates.
// Postings with a non-positive amount are dropped.
func (l *Ledger) Entries(f Folio, postings ...Posting) []Transaction {
	now := l.clock.Now()
	out := make([]Transaction, 0, len(postings))
	for _, p := range postings {
		if !p.Amount.IsPositive() {
			continue
		}
		tx := Transaction{
			ID:          uuid.NewString(),
			FolioID:     f.ID,
			Seq:         l.seq.Add(1),
			Type:        p.Type,
			Amount:      p.Amount,
			Description: p.Description,
			Reference:   p.Reference,
			PostedAt:    now,
		}
		out = append(out, tx)
		if p.Type != TypeRoomCharge {
			continue
		}
		tax, service := f.Rates.Derive(p.Amount)
		if tax.IsPositive() {
			out = append(out, l.derived(tx, TypeTax, tax, "Tax"))
		}
		if service.IsPositive() {
			out = append(out, l.derived(tx, TypeServiceCharge, service, "Service charge"))
		}
	}
	return out
}

func (l *Ledger) derived(parent Transaction, t Type, amount decimal.Decimal, label string) Transaction {
	tx := parent
	tx.ID = uuid.NewString()
	tx.Seq = l.seq.Add(1)
	tx.Type = t
	tx.Amount = amount
	tx.Description = label + " on " + parent.Description
	tx.ParentID = parent.ID
	return tx
}

// Apply installs persisted folios and transactions.
func (l *Ledger) Apply(folios []Folio, txs []Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range folios {
		cp := f
		l.folios[cp.ID] = &cp
		l.byReservation[cp.ReservationID] = cp.ID
	}
	for _, tx := range txs {
		l.txs[tx.FolioID] = append(l.txs[tx.FolioID], tx)
	}
	for _, tx := range txs {
		metrics.IncFolioPosting(string(tx.Type))
	}
}

// Restore seeds folios and transactions from persisted state.
func (l *Ledger) Restore(folios []Folio, txs []Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range folios {
		cp := f
		l.folios[cp.ID] = &cp
		l.byReservation[cp.ReservationID] = cp.ID
	}
	var maxSeq int64
	for _, tx := range txs {
		l.txs[tx.FolioID] = append(l.txs[tx.FolioID], tx)
		maxSeq = max(maxSeq, tx.Seq)
	}
	if maxSeq > l.seq.Load() {
		l.seq.Store(maxSeq)
	}
}

// Folio returns a copy of the folio.
func (l *Ledger) Folio(id string) (Folio, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.folios[id]
	if !ok {
		return Folio{}, false
	}
	return *f, true
}

// ForReservation returns the folio of a reservation, if one was opened.
func (l *Ledger) ForReservation(reservationID string) (Folio, bool) {
	l.mu.RLock()
	id, ok := l.byReservation[reservationID]
	l.mu.RUnlock()
	if !ok {
		return Folio{}, false
	}
	return l.Folio(id)
}

// Transactions returns a copy of a folio's log in insertion order.
func (l *Ledger) Transactions(folioID string) []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.txs[folioID]
	out := make([]Transaction, len(src))
	copy(out, src)
	return out
}

// Totals folds the folio's current log.
func (l *Ledger) Totals(folioID string) Totals {
	return Balance(l.Transactions(folioID))
}

// HasReference reports whether a transaction of type t with the reference was posted.
func (l *Ledger) HasReference(folioID string, t Type, reference string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tx := range l.txs[folioID] {
		if tx.Type == t && tx.Reference == reference {
			return true
		}
	}
	return false
}

func (l *Ledger) hasType(folioID string, t Type) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tx := range l.txs[folioID] {
		if tx.Type == t {
			return true
		}
	}
	return false
}

func (l *Ledger) GetFolio(ctx context.Context, id string) (*FolioView, error) {
	f, ok := l.Folio(id)
	if !ok {
		return nil, ErrFolioNotFound
	}
	txs := l.Transactions(id)
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Seq < txs[j].Seq })
	return &FolioView{Folio: f, Transactions: txs, Totals: Balance(txs)}, nil
}

// GetFolioByReservation returns the folio opened for a reservation at check-in.
func (l *Ledger) GetFolioByReservation(ctx context.Context, reservationID string) (*FolioView, error) {
	f, ok := l.ForReservation(reservationID)
	if !ok {
		return nil, ErrFolioNotFound
	}
	return l.GetFolio(ctx, f.ID)
}

// PostCharge appends a transaction to an open folio. Room charges bring their
// derived tax and service-charge entries. A non-empty reference already posted
// with the same type returns the earlier transaction instead of posting twice.
func (l *Ledger) PostCharge(ctx context.Context, folioID string, p Posting) (*Transaction, error) {
	if !p.Type.Valid() {
		return nil, ErrInvalidType
	}
	if p.Type == TypeTax || p.Type == TypeServiceCharge {
		return nil, ErrDerivedType
	}
	if !p.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	f, ok := l.Folio(folioID)
	if !ok {
		return nil, ErrFolioNotFound
	}
	unlock, err := l.locks.Acquire(ctx, reservationKey(f.ReservationID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock; a check-out may have closed it meanwhile.
	f, _ = l.Folio(folioID)
	if f.Status != FolioOpen {
		return nil, ErrFolioNotOpen
	}
	if p.Reference != "" {
		for _, tx := range l.Transactions(folioID) {
			if tx.Type == p.Type && tx.Reference == p.Reference {
				return &tx, nil
			}
		}
	}

	// A penalty folio belongs to a stay that never happened. It only takes
	// settlement postings and closes once the balance reaches zero.
	penalty := l.hasType(folioID, TypePenalty)
	if penalty && p.Type.Class() == ClassCharge && p.Type != TypeRefund {
		return nil, ErrSettlementOnly
	}

	entries := l.Entries(f, p)
	var folios []Folio
	if penalty && Balance(append(l.Transactions(folioID), entries...)).Settled() {
		folios = append(folios, l.Close(f, FolioClosed))
	}
	if err := l.persister.SaveLedger(ctx, folios, entries); err != nil {
		return nil, fmt.Errorf("save transactions failed: %w", err)
	}
	l.Apply(folios, entries)

	primary := entries[0]
	l.logger.Info("transaction posted",
		zap.String("folio_id", folioID),
		zap.String("type", string(primary.Type)),
		zap.String("amount", primary.Amount.String()))
	event.Emit(ctx, l.publisher, l.logger, PostedEvents(f.ReservationID, entries)...)
	return &primary, nil
}

// PostedEvents describes posted transactions for event consumers.
func PostedEvents(reservationID string, txs []Transaction) []event.Event {
	out := make([]event.Event, 0, len(txs))
	for _, tx := range txs {
		out = append(out, event.New(event.TransactionPosted, tx.FolioID, tx.PostedAt, map[string]any{
			"reservation_id": reservationID,
			"transaction_id": tx.ID,
			"type":           tx.Type,
			"amount":         tx.Amount.String(),
			"reference":      tx.Reference,
		}))
	}
	return out
}
