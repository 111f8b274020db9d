package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
)

// AuditReport summarizes one night audit run.
type AuditReport struct {
	Night   bizdate.Date
	Posted  int
	Skipped int
}

// RunNightAudit posts the room charge of the given night to every in-house
// reservation billed nightly. A night already on the folio is skipped, so the
// audit can be re-run safely.
func (s *service) RunNightAudit(ctx context.Context, night bizdate.Date) (*AuditReport, error) {
	s.mu.RLock()
	var due []string
	for _, r := range s.byID {
		if r.Status == StatusCheckedIn && r.Billing == BillingNightly && night >= r.CheckIn && night < r.CheckOut {
			due = append(due, r.ID)
		}
	}
	s.mu.RUnlock()
	sort.Strings(due)

	report := &AuditReport{Night: night}
	var errs []error
	for _, id := range due {
		posted, err := s.auditOne(ctx, id, night)
		if err != nil {
			errs = append(errs, fmt.Errorf("reservation %s: %w", id, err))
			continue
		}
		if posted {
			report.Posted++
		} else {
			report.Skipped++
		}
	}

	s.Logger.Info("night audit finished",
		zap.String("night", night.String()),
		zap.Int("posted", report.Posted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", len(errs)))
	return report, errors.Join(errs...)
}

func (s *service) auditOne(ctx context.Context, id string, night bizdate.Date) (bool, error) {
	r, unlock, err := s.lock(ctx, id, func(Reservation) lockPlan { return lockPlan{} })
	if err != nil {
		return false, err
	}
	defer unlock()

	if r.Status != StatusCheckedIn {
		return false, nil
	}
	folio, ok := s.Ledger.ForReservation(r.ID)
	if !ok || folio.Status != ledger.FolioOpen {
		return false, nil
	}
	posting := roomCharge(r, night)
	if s.Ledger.HasReference(folio.ID, ledger.TypeRoomCharge, posting.Reference) {
		return false, nil
	}

	txs := s.Ledger.Entries(folio, posting)
	if len(txs) == 0 {
		return false, nil
	}
	if err := s.commit(ctx, ChangeSet{Transactions: txs}); err != nil {
		return false, err
	}
	event.Emit(ctx, s.Publisher, s.Logger, ledger.PostedEvents(r.ID, txs)...)
	return true, nil
}
