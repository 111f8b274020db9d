package roomtype

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
)

type memPersister struct {
	types []RoomType
	plans []RatePlan
	fail  error
}

func (p *memPersister) SaveRoomType(ctx context.Context, rt *RoomType) error {
	if p.fail != nil {
		return p.fail
	}
	p.types = append(p.types, *rt)
	return nil
}

func (p *memPersister) SaveRatePlan(ctx context.Context, plan *RatePlan) error {
	if p.fail != nil {
		return p.fail
	}
	p.plans = append(p.plans, *plan)
	return nil
}

type totals struct {
	byType map[string]int
	reject error
	// rejectAfter fails every call past the first rejectAfter when non-zero.
	rejectAfter int
	calls       int
}

func (s *totals) SetTotal(roomTypeID string, total int) error {
	s.calls++
	if s.reject != nil {
		return s.reject
	}
	if s.rejectAfter > 0 && s.calls > s.rejectAfter {
		return errors.New("calendar unavailable")
	}
	s.byType[roomTypeID] = total
	return nil
}

func newService(t *testing.T) (Service, *memPersister, *totals) {
	t.Helper()
	p := &memPersister{}
	inv := &totals{byType: make(map[string]int)}
	return NewService(p, inv, clock.At(bizdate.MustParse("2025-07-01")), zap.NewNop()), p, inv
}

func TestRoomTypes(t *testing.T) {
	ctx := context.Background()

	t.Run("Create registers inventory", func(t *testing.T) {
		svc, p, inv := newService(t)
		rt, err := svc.Create(ctx, CreateRequest{Code: "dlx", Name: "Deluxe", MaxOccupancy: 2, BaseRate: decimal.NewFromInt(150), TotalInventory: 8})
		require.NoError(t, err)

		assert.Equal(t, "DLX", rt.Code)
		assert.Equal(t, 8, inv.byType[rt.ID])
		require.Len(t, p.types, 1)

		byCode, err := svc.GetByCode(ctx, "Dlx")
		require.NoError(t, err)
		assert.Equal(t, rt.ID, byCode.ID)
		assert.True(t, svc.Exists(ctx, rt.ID))
	})

	t.Run("Validation", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.Create(ctx, CreateRequest{Code: "A", MaxOccupancy: 1})
		assert.ErrorIs(t, err, ErrNameRequired)
		_, err = svc.Create(ctx, CreateRequest{Code: "A", Name: "A"})
		assert.ErrorIs(t, err, ErrInvalidOccupancy)
		_, err = svc.Create(ctx, CreateRequest{Code: "A", Name: "A", MaxOccupancy: 1, TotalInventory: -1})
		assert.ErrorIs(t, err, ErrInvalidInventory)
		_, err = svc.Create(ctx, CreateRequest{Code: "A", Name: "A", MaxOccupancy: 1, BaseRate: decimal.NewFromInt(-1)})
		assert.ErrorIs(t, err, ErrInvalidRate)
	})

	t.Run("Duplicate code", func(t *testing.T) {
		svc, _, _ := newService(t)
		_, err := svc.Create(ctx, CreateRequest{Code: "STD", Name: "Standard", MaxOccupancy: 2})
		require.NoError(t, err)
		_, err = svc.Create(ctx, CreateRequest{Code: "std", Name: "Other", MaxOccupancy: 2})
		assert.ErrorIs(t, err, ErrCodeTaken)
	})

	t.Run("Persistence failure leaves nothing behind", func(t *testing.T) {
		svc, p, inv := newService(t)
		p.fail = errors.New("db down")
		_, err := svc.Create(ctx, CreateRequest{Code: "STD", Name: "Standard", MaxOccupancy: 2, TotalInventory: 3})
		require.Error(t, err)
		assert.Empty(t, inv.byType)

		_, total, err := svc.List(ctx, Filter{})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("Update total inventory", func(t *testing.T) {
		svc, _, inv := newService(t)
		rt, err := svc.Create(ctx, CreateRequest{Code: "STD", Name: "Standard", MaxOccupancy: 2, TotalInventory: 3})
		require.NoError(t, err)

		five := 5
		updated, err := svc.Update(ctx, rt.ID, UpdateRequest{TotalInventory: &five})
		require.NoError(t, err)
		assert.Equal(t, 5, updated.TotalInventory)
		assert.Equal(t, 5, inv.byType[rt.ID])

		inv.reject = errors.New("below committed")
		one := 1
		_, err = svc.Update(ctx, rt.ID, UpdateRequest{TotalInventory: &one})
		require.Error(t, err)

		got, err := svc.GetByID(ctx, rt.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.TotalInventory)
	})

	t.Run("Failed inventory rollback is logged", func(t *testing.T) {
		core, logs := observer.New(zap.ErrorLevel)
		p := &memPersister{}
		inv := &totals{byType: make(map[string]int), rejectAfter: 2}
		svc := NewService(p, inv, clock.At(bizdate.MustParse("2025-07-01")), zap.New(core))

		rt, err := svc.Create(ctx, CreateRequest{Code: "STD", Name: "Standard", MaxOccupancy: 2, TotalInventory: 3})
		require.NoError(t, err)

		p.fail = errors.New("db down")
		five := 5
		_, err = svc.Update(ctx, rt.ID, UpdateRequest{TotalInventory: &five})
		require.Error(t, err)

		entries := logs.FilterMessage("rollback room type inventory failed").All()
		require.Len(t, entries, 1)
		assert.Equal(t, rt.ID, entries[0].ContextMap()["room_type_id"])
		assert.EqualValues(t, 3, entries[0].ContextMap()["total"])
	})

	t.Run("List sorts and pages", func(t *testing.T) {
		svc, _, _ := newService(t)
		for _, code := range []string{"C", "A", "B"} {
			_, err := svc.Create(ctx, CreateRequest{Code: code, Name: "Type " + code, MaxOccupancy: 1})
			require.NoError(t, err)
		}

		items, total, err := svc.List(ctx, Filter{Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, items, 2)
		assert.Equal(t, "A", items[0].Code)
		assert.Equal(t, "B", items[1].Code)

		items, _, err = svc.List(ctx, Filter{Page: 1, PageSize: 10, SortOrder: "desc"})
		require.NoError(t, err)
		assert.Equal(t, "C", items[0].Code)
	})
}

func TestRatePlans(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	rt, err := svc.Create(ctx, CreateRequest{Code: "STD", Name: "Standard", MaxOccupancy: 2, BaseRate: decimal.NewFromInt(100)})
	require.NoError(t, err)

	t.Run("Create and fetch", func(t *testing.T) {
		p, err := svc.CreateRatePlan(ctx, CreateRatePlanRequest{
			Code:         "bar",
			Name:         "Best available",
			RoomTypeID:   rt.ID,
			Restrictions: Restrictions{MinStay: 2},
		})
		require.NoError(t, err)
		assert.True(t, p.Active)
		assert.True(t, p.Rate(rt).Equal(decimal.NewFromInt(100)), "falls back to the room type rate")

		got, err := svc.GetRatePlan(ctx, "BAR")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)

		plans, err := svc.ListRatePlans(ctx, rt.ID)
		require.NoError(t, err)
		assert.Len(t, plans, 1)
	})

	t.Run("Rejects bad restrictions", func(t *testing.T) {
		_, err := svc.CreateRatePlan(ctx, CreateRatePlanRequest{
			Code: "X", Name: "X", RoomTypeID: rt.ID,
			Restrictions: Restrictions{MinStay: 5, MaxStay: 2},
		})
		assert.ErrorIs(t, err, ErrInvalidRestrictions)

		from, to := bizdate.MustParse("2025-08-10"), bizdate.MustParse("2025-08-01")
		_, err = svc.CreateRatePlan(ctx, CreateRatePlanRequest{
			Code: "Y", Name: "Y", RoomTypeID: rt.ID, ValidFrom: &from, ValidTo: &to,
		})
		assert.ErrorIs(t, err, ErrInvalidRestrictions)
	})

	t.Run("Unknown room type", func(t *testing.T) {
		_, err := svc.CreateRatePlan(ctx, CreateRatePlanRequest{Code: "Z", Name: "Z", RoomTypeID: "missing"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Missing plan", func(t *testing.T) {
		_, err := svc.GetRatePlan(ctx, "NOPE")
		assert.ErrorIs(t, err, ErrRatePlanNotFound)
	})
}

func TestViolations(t *testing.T) {
	today := bizdate.MustParse("2025-07-01") // Tuesday
	from := bizdate.MustParse("2025-07-01")
	to := bizdate.MustParse("2025-07-31")
	plan := &RatePlan{
		Active: true,
		Restrictions: Restrictions{
			MinStay:        2,
			MaxStay:        5,
			MinAdvanceDays: 1,
			DaysOfWeek:     []time.Weekday{time.Friday, time.Saturday},
		},
		ValidFrom: &from,
		ValidTo:   &to,
	}

	t.Run("Clean stay", func(t *testing.T) {
		// Friday arrival, 3 nights
		assert.Empty(t, plan.Violations(bizdate.MustParse("2025-07-04"), bizdate.MustParse("2025-07-07"), today))
	})

	t.Run("Every rule reported", func(t *testing.T) {
		v := plan.Violations(today, today.AddDays(1), today)
		assert.Contains(t, v, "stay shorter than minimum stay")
		assert.Contains(t, v, "booked inside minimum advance window")
		assert.Contains(t, v, "arrival day not permitted")
	})

	t.Run("Validity is by night", func(t *testing.T) {
		// Last night is 2025-07-31, still valid.
		v := plan.Violations(bizdate.MustParse("2025-07-29"), bizdate.MustParse("2025-08-01"), today)
		assert.NotContains(t, v, "stay ends after rate plan validity")
		v = plan.Violations(bizdate.MustParse("2025-07-25"), bizdate.MustParse("2025-08-02"), today)
		assert.Contains(t, v, "stay ends after rate plan validity")
		assert.Contains(t, v, "stay longer than maximum stay")
	})

	t.Run("Inactive plan", func(t *testing.T) {
		inactive := &RatePlan{}
		assert.Equal(t, []string{"rate plan is not active"}, inactive.Violations(today, today.AddDays(1), today))
	})
}

func TestCancelPenaltyNights(t *testing.T) {
	checkIn := bizdate.MustParse("2025-07-10")
	policy := CancellationPolicy{FreeCancelDays: 3, PenaltyNights: 1}

	assert.Zero(t, policy.CancelPenaltyNights(checkIn, checkIn.AddDays(-3)))
	assert.Equal(t, 1, policy.CancelPenaltyNights(checkIn, checkIn.AddDays(-2)))
	assert.Equal(t, 2, CancellationPolicy{PenaltyNights: 2}.CancelPenaltyNights(checkIn, checkIn.AddDays(-30)))
}
