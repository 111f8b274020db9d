package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/keylock"
)

type memPersister struct {
	mu     sync.Mutex
	folios []Folio
	txs    []Transaction
	fail   error
}

func (p *memPersister) SaveLedger(ctx context.Context, folios []Folio, txs []Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.folios = append(p.folios, folios...)
	p.txs = append(p.txs, txs...)
	return nil
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newLedger(t *testing.T) (*Ledger, *memPersister, *clock.Manual) {
	t.Helper()
	p := &memPersister{}
	clk := clock.At(bizdate.MustParse("2025-07-10"))
	return New(keylock.New(time.Second), p, event.NewRecorder(), clk, zap.NewNop()), p, clk
}

func openFolio(t *testing.T, l *Ledger, rates Rates) Folio {
	t.Helper()
	f := l.NewFolio("res-1", rates, "")
	l.Apply([]Folio{f}, nil)
	return f
}

func TestBalanceFold(t *testing.T) {
	base := time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC)
	txs := []Transaction{
		{Seq: 3, Type: TypePayment, Amount: money("50"), PostedAt: base.Add(time.Hour)},
		{Seq: 1, Type: TypeRoomCharge, Amount: money("100"), PostedAt: base},
		{Seq: 2, Type: TypeTax, Amount: money("12.50"), PostedAt: base},
		{Seq: 4, Type: TypeAdjustment, Amount: money("10"), PostedAt: base.Add(time.Hour)},
		{Seq: 5, Type: TypeRefund, Amount: money("5"), PostedAt: base.Add(2 * time.Hour)},
	}

	got := Balance(txs)
	assert.True(t, money("117.50").Equal(got.Charges))
	assert.True(t, money("50").Equal(got.Payments))
	assert.True(t, money("10").Equal(got.Credits))
	assert.True(t, money("57.50").Equal(got.Balance))

	// Folding twice gives the same answer and leaves the input untouched.
	again := Balance(txs)
	assert.True(t, got.Balance.Equal(again.Balance))
	assert.Equal(t, int64(3), txs[0].Seq)
}

func TestHundredChargeHundredPaymentSettles(t *testing.T) {
	txs := []Transaction{
		{Seq: 1, Type: TypeRoomCharge, Amount: money("100")},
		{Seq: 2, Type: TypePayment, Amount: money("100")},
	}
	assert.True(t, Balance(txs).Settled())
}

func TestEntriesDeriveTaxAndServiceCharge(t *testing.T) {
	l, _, _ := newLedger(t)
	f := openFolio(t, l, Rates{Tax: money("0.125"), ServiceCharge: money("0.18")})

	entries := l.Entries(f, Posting{Type: TypeRoomCharge, Amount: money("100"), Description: "Room 2025-07-10"})
	require.Len(t, entries, 3)
	assert.Equal(t, TypeRoomCharge, entries[0].Type)
	assert.Equal(t, TypeTax, entries[1].Type)
	assert.True(t, money("12.5").Equal(entries[1].Amount))
	assert.Equal(t, entries[0].ID, entries[1].ParentID)
	assert.Equal(t, TypeServiceCharge, entries[2].Type)
	assert.True(t, money("18").Equal(entries[2].Amount))
	assert.Less(t, entries[0].Seq, entries[1].Seq)
	assert.Less(t, entries[1].Seq, entries[2].Seq)

	// Other charges carry no derived entries.
	assert.Len(t, l.Entries(f, Posting{Type: TypeMisc, Amount: money("5")}), 1)
}

func TestEntriesDropZeroAmounts(t *testing.T) {
	l, _, _ := newLedger(t)
	f := openFolio(t, l, Rates{Tax: money("0.125"), ServiceCharge: money("0.18")})

	entries := l.Entries(f,
		Posting{Type: TypeRoomCharge, Amount: decimal.Zero, Reference: "night:2025-07-10"},
		Posting{Type: TypePenalty, Amount: decimal.Zero},
		Posting{Type: TypeMisc, Amount: money("7")},
	)
	require.Len(t, entries, 1)
	assert.Equal(t, TypeMisc, entries[0].Type)
	for _, tx := range entries {
		assert.True(t, tx.Amount.IsPositive())
	}
}

func TestPostCharge(t *testing.T) {
	ctx := context.Background()

	t.Run("Room charge posts derived entries", func(t *testing.T) {
		l, p, _ := newLedger(t)
		f := openFolio(t, l, Rates{Tax: money("0.1"), ServiceCharge: decimal.Zero})

		tx, err := l.PostCharge(ctx, f.ID, Posting{Type: TypeRoomCharge, Amount: money("100"), Description: "Room"})
		require.NoError(t, err)
		assert.Equal(t, TypeRoomCharge, tx.Type)
		assert.Len(t, p.txs, 2)

		view, err := l.GetFolio(ctx, f.ID)
		require.NoError(t, err)
		assert.True(t, money("110").Equal(view.Totals.Balance))
	})

	t.Run("Rate changes do not touch posted entries", func(t *testing.T) {
		l, _, _ := newLedger(t)
		f := openFolio(t, l, Rates{Tax: money("0.1")})
		_, err := l.PostCharge(ctx, f.ID, Posting{Type: TypeRoomCharge, Amount: money("100")})
		require.NoError(t, err)

		// A later folio with different rates is independent.
		g := l.NewFolio("res-2", Rates{Tax: money("0.2")}, "")
		l.Apply([]Folio{g}, nil)
		assert.True(t, money("110").Equal(l.Totals(f.ID).Balance))
	})

	t.Run("Reference is idempotent", func(t *testing.T) {
		l, p, _ := newLedger(t)
		f := openFolio(t, l, Rates{})
		first, err := l.PostCharge(ctx, f.ID, Posting{Type: TypeRoomCharge, Amount: money("80"), Reference: "night:2025-07-10"})
		require.NoError(t, err)
		second, err := l.PostCharge(ctx, f.ID, Posting{Type: TypeRoomCharge, Amount: money("80"), Reference: "night:2025-07-10"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Len(t, p.txs, 1)
	})

	t.Run("Validation", func(t *testing.T) {
		l, _, _ := newLedger(t)
		f := openFolio(t, l, Rates{})

		_, err := l.PostCharge(ctx, f.ID, Posting{Type: "bogus", Amount: money("1")})
		assert.ErrorIs(t, err, ErrInvalidType)
		_, err = l.PostCharge(ctx, f.ID, Posting{Type: TypeTax, Amount: money("1")})
		assert.ErrorIs(t, err, ErrDerivedType)
		_, err = l.PostCharge(ctx, f.ID, Posting{Type: TypePayment, Amount: money("-1")})
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = l.PostCharge(ctx, "missing", Posting{Type: TypePayment, Amount: money("1")})
		assert.ErrorIs(t, err, ErrFolioNotFound)
	})

	t.Run("Closed folio rejects postings", func(t *testing.T) {
		l, _, _ := newLedger(t)
		f := openFolio(t, l, Rates{})
		l.Apply([]Folio{l.Close(f, FolioClosed)}, nil)

		_, err := l.PostCharge(ctx, f.ID, Posting{Type: TypePayment, Amount: money("1")})
		assert.ErrorIs(t, err, ErrFolioNotOpen)
	})

	t.Run("Penalty folio takes settlement only and closes when settled", func(t *testing.T) {
		l, p, _ := newLedger(t)
		f := openFolio(t, l, Rates{Tax: money("0.1")})
		l.Apply(nil, l.Entries(f, Posting{Type: TypePenalty, Amount: money("100"), Reference: "cancelled"}))

		_, err := l.PostCharge(ctx, f.ID, Posting{Type: TypeMisc, Amount: money("10")})
		assert.ErrorIs(t, err, ErrSettlementOnly)
		_, err = l.PostCharge(ctx, f.ID, Posting{Type: TypeRoomCharge, Amount: money("10")})
		assert.ErrorIs(t, err, ErrSettlementOnly)

		_, err = l.PostCharge(ctx, f.ID, Posting{Type: TypePayment, Amount: money("40")})
		require.NoError(t, err)
		got, _ := l.Folio(f.ID)
		assert.Equal(t, FolioOpen, got.Status)

		_, err = l.PostCharge(ctx, f.ID, Posting{Type: TypeAdjustment, Amount: money("60")})
		require.NoError(t, err)
		got, _ = l.Folio(f.ID)
		assert.Equal(t, FolioClosed, got.Status)
		assert.NotNil(t, got.ClosedAt)
		require.Len(t, p.folios, 1)
		assert.Equal(t, FolioClosed, p.folios[0].Status)

		_, err = l.PostCharge(ctx, f.ID, Posting{Type: TypePayment, Amount: money("1")})
		assert.ErrorIs(t, err, ErrFolioNotOpen)
	})

	t.Run("Persist failure appends nothing", func(t *testing.T) {
		l, p, _ := newLedger(t)
		f := openFolio(t, l, Rates{})
		p.fail = errors.New("db down")

		_, err := l.PostCharge(ctx, f.ID, Posting{Type: TypeMisc, Amount: money("9")})
		require.Error(t, err)
		assert.Empty(t, l.Transactions(f.ID))
	})
}

func TestConcurrentPostingsKeepEveryEntry(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newLedger(t)
	f := openFolio(t, l, Rates{})

	var wg sync.WaitGroup
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.PostCharge(ctx, f.ID, Posting{Type: TypeMisc, Amount: money("2")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, money("50").Equal(l.Totals(f.ID).Balance))
}

func TestRestoreContinuesSequence(t *testing.T) {
	l, _, _ := newLedger(t)
	f := Folio{ID: "f1", ReservationID: "r1", Status: FolioOpen}
	l.Restore([]Folio{f}, []Transaction{{ID: "t1", FolioID: "f1", Seq: 41, Type: TypeMisc, Amount: money("1")}})

	entries := l.Entries(f, Posting{Type: TypeMisc, Amount: money("1")})
	assert.Equal(t, int64(42), entries[0].Seq)

	got, ok := l.ForReservation("r1")
	require.True(t, ok)
	assert.Equal(t, "f1", got.ID)
}
