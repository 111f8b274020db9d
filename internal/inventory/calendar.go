package inventory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/keylock"
)

// Persister stores inventory cells.
type Persister interface {
	SaveInventoryDays(ctx context.Context, days []Day) error
}

type cell struct {
	committed int
	override  Override
}

// typeCalendar is the arena of date cells for one room type. Cells are
// addressed by their offset from origin.
type typeCalendar struct {
	// gate is held shared by range-lock holders and exclusively by changes
	// that affect every date (SetTotal).
	gate sync.RWMutex

	mu     sync.RWMutex
	total  int
	origin bizdate.Date
	cells  []cell
}

func (tc *typeCalendar) at(d bizdate.Date) cell {
	i := int(d - tc.origin)
	if i < 0 || i >= len(tc.cells) {
		return cell{}
	}
	return tc.cells[i]
}

// ensure grows the arena so that [from, to) is addressable. Caller holds mu.
func (tc *typeCalendar) ensure(from, to bizdate.Date) {
	if to <= from {
		return
	}
	if len(tc.cells) == 0 {
		tc.origin = from
		tc.cells = make([]cell, int(to-from))
		return
	}
	if from < tc.origin {
		grown := make([]cell, int(tc.origin-from)+len(tc.cells))
		copy(grown[int(tc.origin-from):], tc.cells)
		tc.cells = grown
		tc.origin = from
	}
	if end := tc.origin.AddDays(len(tc.cells)); to > end {
		tc.cells = append(tc.cells, make([]cell, int(to-end))...)
	}
}

func (tc *typeCalendar) day(roomTypeID string, d bizdate.Date) Day {
	c := tc.at(d)
	return Day{
		RoomTypeID: roomTypeID,
		Date:       d,
		Total:      tc.total,
		Committed:  c.committed,
		Override:   c.override,
	}
}

// Calendar tracks per-room-type, per-date commitments and restrictions.
type Calendar struct {
	mu        sync.RWMutex
	types     map[string]*typeCalendar
	locks     *keylock.Manager
	persister Persister
	publisher event.Publisher
	clock     clock.Clock
	logger    *zap.Logger
}

func NewCalendar(locks *keylock.Manager, persister Persister, clk clock.Clock, logger *zap.Logger) *Calendar {
	return &Calendar{
		types:     make(map[string]*typeCalendar),
		locks:     locks,
		persister: persister,
		clock:     clk,
		logger:    logger,
	}
}

// SetPublisher makes SetOverride announce changes.
func (c *Calendar) SetPublisher(p event.Publisher) {
	c.publisher = p
}

func (c *Calendar) get(roomTypeID string) (*typeCalendar, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tc, ok := c.types[roomTypeID]
	if !ok {
		return nil, ErrUnknownRoomType
	}
	return tc, nil
}

// SetTotal registers a room type or changes its unit total. Lowering the total
// below what is already committed (plus allowance) on any date is rejected.
func (c *Calendar) SetTotal(roomTypeID string, total int) error {
	c.mu.Lock()
	tc, ok := c.types[roomTypeID]
	if !ok {
		c.types[roomTypeID] = &typeCalendar{total: total}
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	tc.gate.Lock()
	defer tc.gate.Unlock()
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for i, cl := range tc.cells {
		if cl.committed > total+cl.override.OverbookingAllowance {
			return apperror.Detail(ErrTotalBelowCommitted,
				fmt.Sprintf("total inventory below committed units on %s", tc.origin.AddDays(i)))
		}
	}
	tc.total = total
	return nil
}

// Keys returns the lock keys guarding [from, to) of a room type.
func Keys(roomTypeID string, from, to bizdate.Date) []string {
	keys := make([]string, 0, max(0, int(to-from)))
	for _, d := range bizdate.Range(from, to) {
		keys = append(keys, "inv:"+roomTypeID+":"+d.String())
	}
	return keys
}

// Lock acquires the per-date locks of [from, to) together with any extra keys
// in one ordered acquisition. PlanCommit, PlanRelease and Apply on that range
// must happen while the lock is held.
func (c *Calendar) Lock(ctx context.Context, roomTypeID string, from, to bizdate.Date, extra ...string) (keylock.Unlock, error) {
	tc, err := c.get(roomTypeID)
	if err != nil {
		return nil, err
	}

	keys := append(Keys(roomTypeID, from, to), extra...)
	unlock, err := c.locks.Acquire(ctx, keys...)
	if err != nil {
		return nil, err
	}
	tc.gate.RLock()

	var once sync.Once
	return func() {
		once.Do(func() {
			tc.gate.RUnlock()
			unlock()
		})
	}, nil
}

// Query computes availability for a stay of [checkIn, checkOut).
func (c *Calendar) Query(ctx context.Context, roomTypeID string, checkIn, checkOut bizdate.Date) (*Availability, error) {
	if checkOut <= checkIn {
		return nil, ErrInvalidDateRange
	}
	tc, err := c.get(roomTypeID)
	if err != nil {
		return nil, err
	}

	tc.mu.RLock()
	defer tc.mu.RUnlock()

	res := &Availability{
		RoomTypeID:  roomTypeID,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		UnitsByDate: make(map[bizdate.Date]int, bizdate.Nights(checkIn, checkOut)),
	}
	res.RestrictionsViolated = tc.violations(checkIn, checkOut)

	available := len(res.RestrictionsViolated) == 0
	for _, d := range bizdate.Range(checkIn, checkOut) {
		units := tc.day(roomTypeID, d).Available()
		res.UnitsByDate[d] = units
		if units < 1 {
			available = false
		}
	}
	res.Available = available
	return res, nil
}

// violations evaluates CTA, CTD and LOS overrides. Caller holds mu.
func (tc *typeCalendar) violations(checkIn, checkOut bizdate.Date) []Violation {
	var out []Violation
	nights := bizdate.Nights(checkIn, checkOut)

	if tc.at(checkIn).override.ClosedToArrival {
		out = append(out, Violation{Date: checkIn, Rule: RuleClosedToArrival})
	}
	if tc.at(checkOut).override.ClosedToDeparture {
		out = append(out, Violation{Date: checkOut, Rule: RuleClosedToDeparture})
	}
	for _, d := range bizdate.Range(checkIn, checkOut) {
		o := tc.at(d).override
		if o.MinLOS > 0 && nights < o.MinLOS {
			out = append(out, Violation{Date: d, Rule: RuleMinLOS})
		}
		if o.MaxLOS > 0 && nights > o.MaxLOS {
			out = append(out, Violation{Date: d, Rule: RuleMaxLOS})
		}
	}
	return out
}

// PlanCommit stages one unit of commitment on every night of [checkIn, checkOut).
// Nothing is mutated; any single-date failure rejects the whole range.
func (c *Calendar) PlanCommit(roomTypeID string, checkIn, checkOut bizdate.Date, opts CommitOptions) (*Change, error) {
	if checkOut <= checkIn {
		return nil, ErrInvalidDateRange
	}
	tc, err := c.get(roomTypeID)
	if err != nil {
		return nil, err
	}

	tc.mu.RLock()
	defer tc.mu.RUnlock()

	if v := tc.violations(checkIn, checkOut); len(v) > 0 && !opts.IgnoreRestrictions {
		return nil, apperror.Detail(ErrRestrictionViolation, describe(v))
	}

	ch := &Change{roomTypeID: roomTypeID, from: checkIn, to: checkOut, delta: 1}
	for _, d := range bizdate.Range(checkIn, checkOut) {
		day := tc.day(roomTypeID, d)
		limit := day.Total
		if opts.AllowOverbooking {
			limit += day.Override.OverbookingAllowance
		}
		if day.Committed+1 > limit {
			return nil, apperror.Detail(ErrCapacityExhausted,
				fmt.Sprintf("no inventory available on %s", d))
		}
		day.Committed++
		ch.days = append(ch.days, day)
	}
	return ch, nil
}

// PlanRelease stages the release of one unit on every night of [from, to).
// An empty range yields an empty change.
func (c *Calendar) PlanRelease(roomTypeID string, from, to bizdate.Date) (*Change, error) {
	tc, err := c.get(roomTypeID)
	if err != nil {
		return nil, err
	}
	ch := &Change{roomTypeID: roomTypeID, from: from, to: to, delta: -1}
	if to <= from {
		return ch, nil
	}

	tc.mu.RLock()
	defer tc.mu.RUnlock()

	for _, d := range bizdate.Range(from, to) {
		day := tc.day(roomTypeID, d)
		if day.Committed < 1 {
			return nil, apperror.Detail(ErrNothingCommitted,
				fmt.Sprintf("no committed inventory to release on %s", d))
		}
		day.Committed--
		ch.days = append(ch.days, day)
	}
	return ch, nil
}

// Apply commits a staged change in one critical section.
func (c *Calendar) Apply(ch *Change) {
	if ch.Empty() {
		return
	}
	tc, err := c.get(ch.roomTypeID)
	if err != nil {
		return
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.ensure(ch.from, ch.to)
	for d := ch.from; d < ch.to; d++ {
		tc.cells[int(d-tc.origin)].committed += ch.delta
	}
}

// SetOverride replaces the override of every date in [from, through].
func (c *Calendar) SetOverride(ctx context.Context, roomTypeID string, from, through bizdate.Date, o Override) ([]Day, error) {
	if through < from {
		return nil, ErrInvalidDateRange
	}
	if !o.valid() {
		return nil, ErrInvalidOverride
	}

	unlock, err := c.Lock(ctx, roomTypeID, from, through.AddDays(1))
	if err != nil {
		return nil, err
	}
	defer unlock()

	tc, err := c.get(roomTypeID)
	if err != nil {
		return nil, err
	}

	tc.mu.RLock()
	days := make([]Day, 0, int(through-from)+1)
	for _, d := range bizdate.Range(from, through.AddDays(1)) {
		day := tc.day(roomTypeID, d)
		if day.Committed > day.Total+o.OverbookingAllowance {
			tc.mu.RUnlock()
			return nil, apperror.Detail(ErrInvalidOverride,
				fmt.Sprintf("override would leave %s overcommitted", d))
		}
		day.Override = o
		days = append(days, day)
	}
	tc.mu.RUnlock()

	if err := c.persister.SaveInventoryDays(ctx, days); err != nil {
		return nil, fmt.Errorf("save inventory override failed: %w", err)
	}

	tc.mu.Lock()
	tc.ensure(from, through.AddDays(1))
	for _, day := range days {
		tc.cells[int(day.Date-tc.origin)].override = o
	}
	tc.mu.Unlock()

	c.logger.Info("inventory override set",
		zap.String("room_type_id", roomTypeID),
		zap.String("from", from.String()),
		zap.String("through", through.String()))
	event.Emit(ctx, c.publisher, c.logger, event.New(event.InventoryOverrideSet, roomTypeID, c.clock.Now(), map[string]any{
		"from":                  from,
		"through":               through,
		"closed_to_arrival":     o.ClosedToArrival,
		"closed_to_departure":   o.ClosedToDeparture,
		"min_los":               o.MinLOS,
		"max_los":               o.MaxLOS,
		"overbooking_allowance": o.OverbookingAllowance,
	}))
	return days, nil
}

// Days returns a snapshot of the cells in [from, to).
func (c *Calendar) Days(roomTypeID string, from, to bizdate.Date) ([]Day, error) {
	if to <= from {
		return nil, ErrInvalidDateRange
	}
	tc, err := c.get(roomTypeID)
	if err != nil {
		return nil, err
	}
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	out := make([]Day, 0, int(to-from))
	for _, d := range bizdate.Range(from, to) {
		out = append(out, tc.day(roomTypeID, d))
	}
	return out, nil
}

// Restore seeds cells from persisted state.
func (c *Calendar) Restore(days []Day) {
	for _, day := range days {
		c.mu.Lock()
		tc, ok := c.types[day.RoomTypeID]
		if !ok {
			tc = &typeCalendar{total: day.Total}
			c.types[day.RoomTypeID] = tc
		}
		c.mu.Unlock()

		tc.mu.Lock()
		tc.ensure(day.Date, day.Date.AddDays(1))
		tc.cells[int(day.Date-tc.origin)] = cell{committed: day.Committed, override: day.Override}
		tc.mu.Unlock()
	}
}

func describe(v []Violation) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = x.Rule + " on " + x.Date.String()
	}
	return "inventory restrictions violated: " + strings.Join(parts, ", ")
}
