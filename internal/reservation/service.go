package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	"github.com/nekogravitycat/hotel-pms-backend/internal/metrics"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/keylock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/response"
	"github.com/nekogravitycat/hotel-pms-backend/internal/room"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
)

type CreateRequest struct {
	Guest             Guest
	RoomTypeID        string
	CheckIn           bizdate.Date
	CheckOut          bizdate.Date
	Occupancy         Occupancy
	RatePlanCode      string
	PaymentStatus     PaymentStatus
	CityLedgerAccount string
	Discount          decimal.Decimal
	// Source and ExternalRef identify channel bookings.
	Source      string
	ExternalRef string
	// Rate overrides the rate plan's nightly rate when set.
	Rate               *decimal.Decimal
	AllowOverbooking   bool
	IgnoreRestrictions bool
}

type CheckOutRequest struct {
	// BalanceForward moves an outstanding balance to a city-ledger account.
	BalanceForward    bool
	CityLedgerAccount string
}

// ChangeSet is every entity a transition writes. It is persisted as one unit.
type ChangeSet struct {
	Reservations []Reservation
	Rooms        []room.Room
	Inventory    []inventory.Day
	Folios       []ledger.Folio
	Transactions []ledger.Transaction
}

// Persister writes a change set atomically.
type Persister interface {
	Commit(ctx context.Context, cs ChangeSet) error
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Reservation, error)
	AssignRoom(ctx context.Context, id, roomID string, override bool) (*Reservation, error)
	CheckIn(ctx context.Context, id string) (*ledger.FolioView, error)
	CheckOut(ctx context.Context, id string, req CheckOutRequest) (*ledger.FolioView, error)
	Cancel(ctx context.Context, id string) (*Reservation, error)
	MarkNoShow(ctx context.Context, id string) (*Reservation, error)
	SweepNoShows(ctx context.Context) (int, error)
	RecordPayment(ctx context.Context, id string, status PaymentStatus) (*Reservation, error)
	RunNightAudit(ctx context.Context, night bizdate.Date) (*AuditReport, error)

	GetByID(ctx context.Context, id string) (*Reservation, error)
	GetByConfirmationCode(ctx context.Context, code string) (*Reservation, error)
	FindByExternalRef(ctx context.Context, source, ref string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	QueryAvailability(ctx context.Context, roomTypeID string, checkIn, checkOut bizdate.Date) (*inventory.Availability, error)

	// Restore seeds reservations from persisted state.
	Restore(reservations []Reservation)
}

// Deps are the collaborators of the lifecycle service.
type Deps struct {
	Locks     *keylock.Manager
	Calendar  *inventory.Calendar
	Rooms     *room.Tracker
	Ledger    *ledger.Ledger
	Catalog   roomtype.Service
	Persister Persister
	Publisher event.Publisher
	Clock     clock.Clock
	Settings  Settings
	Logger    *zap.Logger
}

type service struct {
	mu         sync.RWMutex
	byID       map[string]*Reservation
	byCode     map[string]string
	byExternal map[string]string

	Deps
}

func NewService(deps Deps) Service {
	if deps.Settings.Billing == "" {
		deps.Settings.Billing = BillingPrebill
	}
	return &service{
		byID:       make(map[string]*Reservation),
		byCode:     make(map[string]string),
		byExternal: make(map[string]string),
		Deps:       deps,
	}
}

// Key returns the lock key of a reservation.
func Key(id string) string {
	return "res:" + id
}

func externalKey(source, ref string) string {
	return source + "\x00" + ref
}

func (s *service) today() bizdate.Date {
	return clock.Today(s.Clock, s.Settings.Location)
}

// reject counts a failed request by error kind and passes the error through.
func (s *service) reject(op string, err error) error {
	metrics.IncReservationRejection(string(apperror.KindOf(err)))
	s.Logger.Debug("reservation request rejected", zap.String("op", op), zap.Error(err))
	return err
}

func (s *service) get(id string) (Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return Reservation{}, ErrNotFound
	}
	return *r, nil
}

func (s *service) put(rs ...Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rs {
		cp := r
		s.byID[cp.ID] = &cp
		s.byCode[cp.ConfirmationCode] = cp.ID
		if cp.ExternalRef != "" {
			s.byExternal[externalKey(cp.Source, cp.ExternalRef)] = cp.ID
		}
	}
}

// lockPlan names what a transition touches beyond the reservation itself.
type lockPlan struct {
	from, to bizdate.Date
	rooms    []string
}

// lock acquires the reservation key, room keys and inventory range in a
// single ordered acquisition and returns the reservation as of that moment.
// If the reservation moved between planning and acquiring, it replans.
func (s *service) lock(ctx context.Context, id string, plan func(r Reservation) lockPlan) (Reservation, keylock.Unlock, error) {
	for range 3 {
		snap, err := s.get(id)
		if err != nil {
			return Reservation{}, nil, err
		}
		p := plan(snap)
		extra := []string{Key(id)}
		for _, roomID := range p.rooms {
			if roomID != "" {
				extra = append(extra, room.Key(roomID))
			}
		}

		unlock, err := s.Calendar.Lock(ctx, snap.RoomTypeID, p.from, p.to, extra...)
		if err != nil {
			return Reservation{}, nil, err
		}
		cur, err := s.get(id)
		if err != nil {
			unlock()
			return Reservation{}, nil, err
		}
		if cur.Version == snap.Version {
			return cur, unlock, nil
		}
		unlock()
	}
	return Reservation{}, nil, keylock.ErrBusy
}

func (s *service) stage(r Reservation) Reservation {
	r.Version++
	r.UpdatedAt = s.Clock.Now()
	return r
}

// commit persists the change set and then installs it in memory.
func (s *service) commit(ctx context.Context, cs ChangeSet, inv ...*inventory.Change) error {
	if err := s.Persister.Commit(ctx, cs); err != nil {
		return fmt.Errorf("commit reservation change failed: %w", err)
	}
	for _, ch := range inv {
		s.Calendar.Apply(ch)
	}
	s.Rooms.Apply(cs.Rooms...)
	s.Ledger.Apply(cs.Folios, cs.Transactions)
	s.put(cs.Reservations...)
	return nil
}

func (s *service) transitioned(ctx context.Context, r Reservation, t event.Type, extra ...event.Event) {
	metrics.IncReservationTransition(string(r.Status))
	s.Logger.Info("reservation transition",
		zap.String("reservation_id", r.ID),
		zap.String("confirmation_code", r.ConfirmationCode),
		zap.String("status", string(r.Status)),
		zap.String("event", string(t)))
	events := append([]event.Event{event.New(t, r.ID, r.UpdatedAt, map[string]any{
		"confirmation_code": r.ConfirmationCode,
		"room_type_id":      r.RoomTypeID,
		"room_id":           r.RoomID,
		"status":            r.Status,
		"check_in":          r.CheckIn.String(),
		"check_out":         r.CheckOut.String(),
		"source":            r.Source,
	})}, extra...)
	event.Emit(ctx, s.Publisher, s.Logger, events...)
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Reservation, error) {
	r, err := s.create(ctx, req)
	if err != nil {
		return nil, s.reject("create", err)
	}
	return r, nil
}

func (s *service) create(ctx context.Context, req CreateRequest) (*Reservation, error) {
	if strings.TrimSpace(req.Guest.Name) == "" {
		return nil, ErrGuestRequired
	}
	if req.CheckOut <= req.CheckIn {
		return nil, inventory.ErrInvalidDateRange
	}
	today := s.today()
	if req.CheckIn < today {
		return nil, ErrCheckInPast
	}
	if req.PaymentStatus == "" {
		req.PaymentStatus = PaymentPending
	}
	if !req.PaymentStatus.Valid() {
		return nil, ErrInvalidPayment
	}
	if req.Source == "" {
		req.Source = SourceDirect
	}
	if req.CityLedgerAccount != "" && !s.Settings.KnownAccount(req.CityLedgerAccount) {
		return nil, ErrUnknownCityLedger
	}

	rt, err := s.Catalog.GetByID(ctx, req.RoomTypeID)
	if err != nil {
		return nil, err
	}
	if req.Occupancy.Adults < 1 || req.Occupancy.Children < 0 || req.Occupancy.Total() > rt.MaxOccupancy {
		return nil, ErrInvalidOccupancy
	}

	rate := rt.BaseRate
	var cancellation roomtype.CancellationPolicy
	planCode := ""
	if req.RatePlanCode != "" {
		plan, err := s.Catalog.GetRatePlan(ctx, req.RatePlanCode)
		if err != nil {
			return nil, err
		}
		if plan.RoomTypeID != rt.ID {
			return nil, ErrRatePlanMismatch
		}
		if v := plan.Violations(req.CheckIn, req.CheckOut, today); len(v) > 0 {
			return nil, apperror.Detail(roomtype.ErrRestrictionViolation,
				"rate plan restrictions violated: "+strings.Join(v, "; "))
		}
		rate = plan.Rate(rt)
		cancellation = plan.Cancellation
		planCode = plan.Code
	}
	if req.Rate != nil && req.Rate.IsPositive() {
		rate = *req.Rate
	}

	nights := bizdate.Nights(req.CheckIn, req.CheckOut)
	rates := ledger.Rates{Tax: s.Settings.TaxRate, ServiceCharge: s.Settings.ServiceChargeRate}
	gross := StayTotal(rate, nights, rates, decimal.Zero)
	if req.Discount.IsNegative() || req.Discount.GreaterThan(gross) {
		return nil, ErrInvalidDiscount
	}

	if req.ExternalRef != "" {
		if _, err := s.FindByExternalRef(ctx, req.Source, req.ExternalRef); err == nil {
			return nil, ErrDuplicateBooking
		}
	}

	unlock, err := s.Calendar.Lock(ctx, rt.ID, req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}
	defer unlock()

	change, err := s.Calendar.PlanCommit(rt.ID, req.CheckIn, req.CheckOut,
		inventory.CommitOptions{AllowOverbooking: req.AllowOverbooking, IgnoreRestrictions: req.IgnoreRestrictions})
	if err != nil {
		return nil, err
	}
	overbooked := false
	for _, d := range change.Days() {
		if d.Committed > d.Total {
			overbooked = true
		}
	}

	now := s.Clock.Now()
	r := Reservation{
		ID:                uuid.NewString(),
		ConfirmationCode:  s.newConfirmationCode(),
		Guest:             req.Guest,
		RoomTypeID:        rt.ID,
		RatePlanCode:      planCode,
		CheckIn:           req.CheckIn,
		CheckOut:          req.CheckOut,
		CommittedTo:       req.CheckOut,
		Occupancy:         req.Occupancy,
		Status:            StatusPending,
		PaymentStatus:     req.PaymentStatus,
		CityLedgerAccount: req.CityLedgerAccount,
		Rate:              rate,
		Rates:             rates,
		Discount:          req.Discount,
		Total:             gross.Sub(req.Discount),
		Billing:           s.Settings.Billing,
		Cancellation:      cancellation,
		Source:            req.Source,
		ExternalRef:       req.ExternalRef,
		Overbooked:        overbooked,
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
	}
	if r.Guaranteed() {
		r.Status = StatusConfirmed
	}

	if err := s.commit(ctx, ChangeSet{Reservations: []Reservation{r}, Inventory: change.Days()}, change); err != nil {
		return nil, err
	}

	metrics.IncReservationTransition(string(r.Status))
	s.Logger.Info("reservation created",
		zap.String("reservation_id", r.ID),
		zap.String("confirmation_code", r.ConfirmationCode),
		zap.String("room_type_id", r.RoomTypeID),
		zap.String("check_in", r.CheckIn.String()),
		zap.String("check_out", r.CheckOut.String()),
		zap.String("status", string(r.Status)),
		zap.Bool("overbooked", r.Overbooked))
	event.Emit(ctx, s.Publisher, s.Logger, event.New(event.ReservationCreated, r.ID, now, map[string]any{
		"confirmation_code": r.ConfirmationCode,
		"room_type_id":      r.RoomTypeID,
		"check_in":          r.CheckIn.String(),
		"check_out":         r.CheckOut.String(),
		"status":            r.Status,
		"total":             r.Total.String(),
		"source":            r.Source,
		"overbooked":        r.Overbooked,
	}))
	return &r, nil
}

// newConfirmationCode returns a code not used by any known reservation.
func (s *service) newConfirmationCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for {
		code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
		if _, taken := s.byCode[code]; !taken {
			return code
		}
	}
}

func (s *service) AssignRoom(ctx context.Context, id, roomID string, override bool) (*Reservation, error) {
	r, err := s.assignRoom(ctx, id, roomID, override)
	if err != nil {
		return nil, s.reject("assign_room", err)
	}
	return r, nil
}

func (s *service) assignRoom(ctx context.Context, id, roomID string, override bool) (*Reservation, error) {
	r, unlock, err := s.lock(ctx, id, func(r Reservation) lockPlan {
		return lockPlan{rooms: []string{r.RoomID, roomID}}
	})
	if err != nil {
		return nil, err
	}
	defer unlock()

	if r.Status != StatusConfirmed {
		return nil, apperror.Detail(ErrInvalidTransition, "room can only be assigned to a confirmed reservation")
	}
	if r.RoomID == roomID {
		return &r, nil
	}
	rm, err := s.Rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rm.RoomTypeID != r.RoomTypeID {
		return nil, ErrRoomTypeMismatch
	}
	assigned, err := rm.Assign(r.ID, override)
	if err != nil {
		return nil, err
	}

	rooms := []room.Room{s.Rooms.Stage(assigned)}
	if r.RoomID != "" {
		prev, err := s.Rooms.Get(ctx, r.RoomID)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, s.Rooms.Stage(prev.Unassign(r.ID)))
	}
	r.RoomID = roomID
	r = s.stage(r)

	if err := s.commit(ctx, ChangeSet{Reservations: []Reservation{r}, Rooms: rooms}); err != nil {
		return nil, err
	}
	s.transitioned(ctx, r, event.ReservationRoomAssigned)
	return &r, nil
}

func (s *service) CheckIn(ctx context.Context, id string) (*ledger.FolioView, error) {
	view, err := s.checkIn(ctx, id)
	if err != nil {
		return nil, s.reject("check_in", err)
	}
	return view, nil
}

func (s *service) checkIn(ctx context.Context, id string) (*ledger.FolioView, error) {
	r, unlock, err := s.lock(ctx, id, func(r Reservation) lockPlan {
		return lockPlan{rooms: []string{r.RoomID}}
	})
	if err != nil {
		return nil, err
	}
	defer unlock()

	if r.Status == StatusPending {
		return nil, ErrGuaranteeRequired
	}
	if r.Status != StatusConfirmed {
		return nil, apperror.Detail(ErrInvalidTransition, "only a confirmed reservation can check in")
	}
	if r.RoomID == "" {
		return nil, ErrNoRoomAssigned
	}
	today := s.today()
	if today < r.CheckIn || today >= r.CheckOut {
		return nil, ErrNotArrived
	}
	rm, err := s.Rooms.Get(ctx, r.RoomID)
	if err != nil {
		return nil, err
	}
	occupied, err := rm.Occupy(r.ID)
	if err != nil {
		return nil, err
	}
	if !r.Guaranteed() {
		return nil, ErrGuaranteeRequired
	}

	folio := s.Ledger.NewFolio(r.ID, r.Rates, r.CityLedgerAccount)
	last := r.CheckOut
	if r.Billing == BillingNightly {
		last = today.AddDays(1)
	}
	var postings []ledger.Posting
	for _, night := range bizdate.Range(r.CheckIn, last) {
		postings = append(postings, roomCharge(r, night))
	}
	if r.Discount.IsPositive() {
		postings = append(postings, ledger.Posting{
			Type:        ledger.TypeAdjustment,
			Amount:      r.Discount,
			Description: "Discount",
			Reference:   "discount",
		})
	}
	txs := s.Ledger.Entries(folio, postings...)

	now := s.Clock.Now()
	r.Status = StatusCheckedIn
	r.CheckedInAt = &now
	r = s.stage(r)

	cs := ChangeSet{
		Reservations: []Reservation{r},
		Rooms:        []room.Room{s.Rooms.Stage(occupied)},
		Folios:       []ledger.Folio{folio},
		Transactions: txs,
	}
	if err := s.commit(ctx, cs); err != nil {
		return nil, err
	}
	s.transitioned(ctx, r, event.ReservationCheckedIn, ledger.PostedEvents(r.ID, txs)...)
	return s.Ledger.GetFolio(ctx, folio.ID)
}

func roomCharge(r Reservation, night bizdate.Date) ledger.Posting {
	return ledger.Posting{
		Type:        ledger.TypeRoomCharge,
		Amount:      r.Rate,
		Description: "Room charge " + night.String(),
		Reference:   "night:" + night.String(),
	}
}

func (s *service) CheckOut(ctx context.Context, id string, req CheckOutRequest) (*ledger.FolioView, error) {
	view, err := s.checkOut(ctx, id, req)
	if err != nil {
		return nil, s.reject("check_out", err)
	}
	return view, nil
}

func (s *service) checkOut(ctx context.Context, id string, req CheckOutRequest) (*ledger.FolioView, error) {
	today := s.today()
	r, unlock, err := s.lock(ctx, id, func(r Reservation) lockPlan {
		return lockPlan{from: bizdate.Max(today, r.CheckIn), to: r.CommittedTo, rooms: []string{r.RoomID}}
	})
	if err != nil {
		return nil, err
	}
	defer unlock()

	if r.Status != StatusCheckedIn {
		return nil, apperror.Detail(ErrInvalidTransition, "only a checked-in reservation can check out")
	}
	folio, ok := s.Ledger.ForReservation(r.ID)
	if !ok {
		return nil, ledger.ErrFolioNotFound
	}

	totals := s.Ledger.Totals(folio.ID)
	status := ledger.FolioClosed
	var txs []ledger.Transaction
	if !totals.Settled() {
		if !req.BalanceForward || totals.Balance.IsNegative() {
			return nil, apperror.Detail(ledger.ErrOutstandingBalance,
				"folio balance is not settled: "+totals.Balance.StringFixed(2))
		}
		account := req.CityLedgerAccount
		if account == "" {
			account = r.CityLedgerAccount
		}
		if account == "" {
			return nil, ErrCityLedgerRequired
		}
		if !s.Settings.KnownAccount(account) {
			return nil, ErrUnknownCityLedger
		}
		folio.CityLedgerAccount = account
		txs = s.Ledger.Entries(folio, ledger.Posting{
			Type:        ledger.TypeTransfer,
			Amount:      totals.Balance,
			Description: "Balance forward to " + account,
			Reference:   "city-ledger:" + account,
		})
		status = ledger.FolioTransferred
	}

	rm, err := s.Rooms.Get(ctx, r.RoomID)
	if err != nil {
		return nil, err
	}
	vacated, err := rm.Vacate(r.ID)
	if err != nil {
		return nil, err
	}

	from := bizdate.Max(today, r.CheckIn)
	release, err := s.Calendar.PlanRelease(r.RoomTypeID, from, r.CommittedTo)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	if from < r.CommittedTo {
		r.CommittedTo = from
	}
	r.Status = StatusCheckedOut
	r.ClosedAt = &now
	r = s.stage(r)
	closed := s.Ledger.Close(folio, status)

	cs := ChangeSet{
		Reservations: []Reservation{r},
		Rooms:        []room.Room{s.Rooms.Stage(vacated)},
		Inventory:    release.Days(),
		Folios:       []ledger.Folio{closed},
		Transactions: txs,
	}
	if err := s.commit(ctx, cs, release); err != nil {
		return nil, err
	}
	s.transitioned(ctx, r, event.ReservationCheckedOut, ledger.PostedEvents(r.ID, txs)...)
	return s.Ledger.GetFolio(ctx, closed.ID)
}

func (s *service) Cancel(ctx context.Context, id string) (*Reservation, error) {
	r, err := s.cancel(ctx, id)
	if err != nil {
		return nil, s.reject("cancel", err)
	}
	return r, nil
}

func (s *service) cancel(ctx context.Context, id string) (*Reservation, error) {
	r, unlock, err := s.lock(ctx, id, func(r Reservation) lockPlan {
		return lockPlan{from: r.CheckIn, to: r.CommittedTo, rooms: []string{r.RoomID}}
	})
	if err != nil {
		return nil, err
	}
	defer unlock()

	if r.Status != StatusPending && r.Status != StatusConfirmed {
		return nil, apperror.Detail(ErrInvalidTransition, "only a pending or confirmed reservation can be cancelled")
	}
	today := s.today()
	nights := min(r.Cancellation.CancelPenaltyNights(r.CheckIn, today), r.Nights())
	return s.release(ctx, r, r.CheckIn, StatusCancelled, nights, "Cancellation penalty")
}

func (s *service) MarkNoShow(ctx context.Context, id string) (*Reservation, error) {
	r, err := s.markNoShow(ctx, id)
	if err != nil {
		return nil, s.reject("no_show", err)
	}
	return r, nil
}

func (s *service) markNoShow(ctx context.Context, id string) (*Reservation, error) {
	today := s.today()
	r, unlock, err := s.lock(ctx, id, func(r Reservation) lockPlan {
		return lockPlan{from: bizdate.Max(today, r.CheckIn), to: r.CommittedTo, rooms: []string{r.RoomID}}
	})
	if err != nil {
		return nil, err
	}
	defer unlock()

	if r.Status != StatusConfirmed {
		return nil, apperror.Detail(ErrInvalidTransition, "only a confirmed reservation can be marked no-show")
	}
	if today <= r.CheckIn {
		return nil, ErrNoShowTooEarly
	}
	// Elapsed nights stay committed; only future nights return to sale.
	nights := min(r.Cancellation.NoShowPenaltyNights, r.Nights())
	return s.release(ctx, r, bizdate.Max(today, r.CheckIn), StatusNoShow, nights, "No-show penalty")
}

// release ends a reservation that never checked in. It returns the nights
// from `from` onward to inventory, unbinds the room and posts a penalty of
// penaltyNights at the reservation's rate. Caller holds the locks.
func (s *service) release(ctx context.Context, r Reservation, from bizdate.Date, status Status, penaltyNights int, label string) (*Reservation, error) {
	change, err := s.Calendar.PlanRelease(r.RoomTypeID, from, r.CommittedTo)
	if err != nil {
		return nil, err
	}

	var rooms []room.Room
	if r.RoomID != "" {
		rm, err := s.Rooms.Get(ctx, r.RoomID)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, s.Rooms.Stage(rm.Unassign(r.ID)))
		r.RoomID = ""
	}

	// The penalty folio stays open until the guest settles it.
	var folios []ledger.Folio
	var txs []ledger.Transaction
	if penalty := r.Rate.Mul(decimal.NewFromInt(int64(penaltyNights))); penalty.IsPositive() {
		folio, ok := s.Ledger.ForReservation(r.ID)
		if !ok {
			folio = s.Ledger.NewFolio(r.ID, r.Rates, r.CityLedgerAccount)
			folios = append(folios, folio)
		}
		txs = s.Ledger.Entries(folio, ledger.Posting{
			Type:        ledger.TypePenalty,
			Amount:      penalty,
			Description: fmt.Sprintf("%s (%d nights)", label, penaltyNights),
			Reference:   string(status),
		})
	}

	now := s.Clock.Now()
	if from < r.CommittedTo {
		r.CommittedTo = from
	}
	r.Status = status
	r.ClosedAt = &now
	r = s.stage(r)

	cs := ChangeSet{
		Reservations: []Reservation{r},
		Rooms:        rooms,
		Inventory:    change.Days(),
		Folios:       folios,
		Transactions: txs,
	}
	if err := s.commit(ctx, cs, change); err != nil {
		return nil, err
	}

	t := event.ReservationCancelled
	if status == StatusNoShow {
		t = event.ReservationNoShow
	}
	s.transitioned(ctx, r, t, ledger.PostedEvents(r.ID, txs)...)
	return &r, nil
}

// SweepNoShows marks every confirmed reservation whose check-in date has
// passed. Running it again finds nothing new.
func (s *service) SweepNoShows(ctx context.Context) (int, error) {
	today := s.today()
	s.mu.RLock()
	var due []string
	for _, r := range s.byID {
		if r.Status == StatusConfirmed && r.CheckIn < today {
			due = append(due, r.ID)
		}
	}
	s.mu.RUnlock()
	sort.Strings(due)

	marked := 0
	var errs []error
	for _, id := range due {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		if _, err := s.MarkNoShow(ctx, id); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// Checked in or cancelled since the scan.
				continue
			}
			errs = append(errs, fmt.Errorf("reservation %s: %w", id, err))
			continue
		}
		marked++
	}
	metrics.AddNoShowSwept(marked)
	if marked > 0 || len(errs) > 0 {
		s.Logger.Info("no-show sweep finished", zap.Int("marked", marked), zap.Int("failed", len(errs)))
	}
	return marked, errors.Join(errs...)
}

func (s *service) RecordPayment(ctx context.Context, id string, status PaymentStatus) (*Reservation, error) {
	r, err := s.recordPayment(ctx, id, status)
	if err != nil {
		return nil, s.reject("record_payment", err)
	}
	return r, nil
}

func (s *service) recordPayment(ctx context.Context, id string, status PaymentStatus) (*Reservation, error) {
	if !status.Valid() {
		return nil, ErrInvalidPayment
	}
	r, unlock, err := s.lock(ctx, id, func(Reservation) lockPlan { return lockPlan{} })
	if err != nil {
		return nil, err
	}
	defer unlock()

	r.PaymentStatus = status
	promoted := r.Status == StatusPending && r.Guaranteed()
	if promoted {
		r.Status = StatusConfirmed
	}
	r = s.stage(r)

	if err := s.commit(ctx, ChangeSet{Reservations: []Reservation{r}}); err != nil {
		return nil, err
	}

	paid := event.New(event.PaymentRecorded, r.ID, r.UpdatedAt, map[string]any{"payment_status": status})
	if promoted {
		s.transitioned(ctx, r, event.ReservationConfirmed, paid)
	} else {
		event.Emit(ctx, s.Publisher, s.Logger, paid)
	}
	return &r, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Reservation, error) {
	r, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *service) GetByConfirmationCode(ctx context.Context, code string) (*Reservation, error) {
	s.mu.RLock()
	id, ok := s.byCode[strings.ToUpper(code)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *service) FindByExternalRef(ctx context.Context, source, ref string) (*Reservation, error) {
	s.mu.RLock()
	id, ok := s.byExternal[externalKey(source, ref)]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	s.mu.RLock()
	out := make([]*Reservation, 0, len(s.byID))
	for _, r := range s.byID {
		if filter.Status != "" && string(r.Status) != filter.Status {
			continue
		}
		if filter.RoomTypeID != "" && r.RoomTypeID != filter.RoomTypeID {
			continue
		}
		if filter.Source != "" && r.Source != filter.Source {
			continue
		}
		if filter.Date != nil && (*filter.Date < r.CheckIn || *filter.Date >= r.CheckOut) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	desc := strings.EqualFold(filter.SortOrder, "desc")
	sort.Slice(out, func(i, j int) bool {
		if out[i].CheckIn != out[j].CheckIn {
			return (out[i].CheckIn < out[j].CheckIn) != desc
		}
		return (out[i].CreatedAt.Before(out[j].CreatedAt)) != desc
	})

	total := len(out)
	return response.Paginate(out, filter.Page, filter.PageSize), total, nil
}

func (s *service) QueryAvailability(ctx context.Context, roomTypeID string, checkIn, checkOut bizdate.Date) (*inventory.Availability, error) {
	return s.Calendar.Query(ctx, roomTypeID, checkIn, checkOut)
}

func (s *service) Restore(reservations []Reservation) {
	s.put(reservations...)
}
