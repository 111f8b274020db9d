package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/auth"
	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/keylock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
	"github.com/nekogravitycat/hotel-pms-backend/internal/room"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
)

type memStore struct {
	mu        sync.Mutex
	conflicts []Conflict
}

func (m *memStore) SaveRoomType(ctx context.Context, rt *roomtype.RoomType) error     { return nil }
func (m *memStore) SaveRatePlan(ctx context.Context, p *roomtype.RatePlan) error      { return nil }
func (m *memStore) SaveInventoryDays(ctx context.Context, days []inventory.Day) error { return nil }
func (m *memStore) SaveRooms(ctx context.Context, rooms ...room.Room) error           { return nil }
func (m *memStore) SaveLedger(ctx context.Context, f []ledger.Folio, t []ledger.Transaction) error {
	return nil
}
func (m *memStore) Commit(ctx context.Context, cs reservation.ChangeSet) error { return nil }
func (m *memStore) SaveChannel(ctx context.Context, ch Channel) error          { return nil }

func (m *memStore) SaveConflict(ctx context.Context, c Conflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts = append(m.conflicts, c)
	return nil
}

type fakeRemote struct {
	mu       sync.Mutex
	feed     *Feed
	notices  []RejectionNotice
	failWith error
}

func (f *fakeRemote) FetchFeed(ctx context.Context, url string) (*Feed, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.feed, nil
}

func (f *fakeRemote) NotifyRejection(ctx context.Context, url string, n RejectionNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
	return f.failWith
}

type fixture struct {
	sync   *Synchronizer
	res    reservation.Service
	cal    *inventory.Calendar
	rt     *roomtype.RoomType
	remote *fakeRemote
	events *event.Recorder
}

const secret = "super-secret-value"

func newFixture(t *testing.T, total int, remote Remote) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	clk := clock.At(bizdate.MustParse("2025-07-01"))
	store := &memStore{}
	locks := keylock.New(time.Second)
	rec := event.NewRecorder()

	cal := inventory.NewCalendar(locks, store, clk, logger)
	catalog := roomtype.NewService(store, cal, clk, logger)
	rt, err := catalog.Create(ctx, roomtype.CreateRequest{
		Code: "DLX", Name: "Deluxe", MaxOccupancy: 3, BaseRate: decimal.NewFromInt(150), TotalInventory: total,
	})
	require.NoError(t, err)

	res := reservation.NewService(reservation.Deps{
		Locks:     locks,
		Calendar:  cal,
		Rooms:     room.NewTracker(locks, store, catalog, rec, clk, logger),
		Ledger:    ledger.New(locks, store, rec, clk, logger),
		Catalog:   catalog,
		Persister: store,
		Publisher: rec,
		Clock:     clk,
		Logger:    logger,
	})

	fr, _ := remote.(*fakeRemote)
	s := NewSynchronizer(Deps{
		Locks:        locks,
		Reservations: res,
		Catalog:      catalog,
		Persister:    store,
		Remote:       remote,
		Hasher:       auth.NewBcryptPasswordHasherWithCost(4),
		Publisher:    rec,
		Clock:        clk,
		Logger:       logger,
	})
	return &fixture{sync: s, res: res, cal: cal, rt: rt, remote: fr, events: rec}
}

func (f *fixture) channel(t *testing.T, code, feedURL string) *Channel {
	t.Helper()
	ch, err := f.sync.Register(context.Background(), RegisterRequest{
		Code: code, Name: code, Kind: KindOTA, Secret: secret,
		FeedURL: feedURL, CallbackURL: "http://channel.invalid/callback",
	})
	require.NoError(t, err)
	return ch
}

func booking(ref string) ExternalBooking {
	return ExternalBooking{
		ExternalRef:  ref,
		RoomTypeCode: "DLX",
		CheckIn:      bizdate.MustParse("2025-07-10"),
		CheckOut:     bizdate.MustParse("2025-07-12"),
		GuestName:    "Channel Guest",
		Adults:       2,
	}
}

func (f *fixture) committed(t *testing.T, date string) int {
	t.Helper()
	d := bizdate.MustParse(date)
	days, err := f.cal.Days(f.rt.ID, d, d.AddDays(1))
	require.NoError(t, err)
	return days[0].Committed
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, &fakeRemote{})
	ch := f.channel(t, "ota1", "")
	assert.Equal(t, "OTA1", ch.Code)
	assert.NotEqual(t, secret, ch.SecretHash)

	require.NoError(t, f.sync.Authenticate(ctx, ch.ID, secret))
	assert.ErrorIs(t, f.sync.Authenticate(ctx, ch.ID, "wrong-secret-value"), ErrInvalidSecret)
	assert.ErrorIs(t, f.sync.Authenticate(ctx, "missing", secret), ErrInvalidSecret)

	_, err := f.sync.Register(ctx, RegisterRequest{Code: "OTA1", Kind: KindOTA, Secret: secret})
	assert.ErrorIs(t, err, ErrCodeTaken)
	_, err = f.sync.Register(ctx, RegisterRequest{Code: "X", Kind: KindOTA, Secret: "short"})
	assert.ErrorIs(t, err, ErrSecretTooShort)
	_, err = f.sync.Register(ctx, RegisterRequest{Code: "Y", Kind: "fax", Secret: secret})
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestSyncBookingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2, &fakeRemote{})
	ch := f.channel(t, "OTA", "")

	first, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, first.Outcome)
	assert.Equal(t, reservation.StatusConfirmed, first.Reservation.Status)
	assert.Equal(t, ch.ID, first.Reservation.Source)

	again, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, again.Outcome)
	assert.Equal(t, first.Reservation.ID, again.Reservation.ID)
	assert.Equal(t, 1, f.committed(t, "2025-07-10"))
}

func TestSyncBookingConflictDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, &fakeRemote{})
	ch := f.channel(t, "OTA", "")

	_, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-1"))
	require.NoError(t, err)

	result, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, result.Outcome)
	require.NotNil(t, result.Conflict)
	assert.Equal(t, ConflictOpen, result.Conflict.Status)
	assert.Equal(t, "CapacityExhausted", result.Conflict.Kind)
	assert.Equal(t, 1, f.committed(t, "2025-07-10"))

	_, err = f.res.FindByExternalRef(ctx, ch.ID, "EXT-2")
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	// Re-delivery returns the same open conflict.
	again, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-2"))
	require.NoError(t, err)
	assert.Equal(t, result.Conflict.ID, again.Conflict.ID)

	open, total, err := f.sync.ListConflicts(ctx, ConflictFilter{Status: "open", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "EXT-2", open[0].ExternalRef)
	assert.Len(t, f.events.OfType(event.ChannelConflictRecorded), 1)
}

func TestDirectAndChannelBookingsShareInventory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, &fakeRemote{})
	ch := f.channel(t, "OTA", "")

	_, err := f.res.Create(ctx, reservation.CreateRequest{
		Guest: reservation.Guest{Name: "Walk In"}, RoomTypeID: f.rt.ID,
		CheckIn: bizdate.MustParse("2025-07-11"), CheckOut: bizdate.MustParse("2025-07-12"),
		Occupancy: reservation.Occupancy{Adults: 1}, PaymentStatus: reservation.PaymentPaid,
	})
	require.NoError(t, err)

	result, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-9"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, result.Outcome)
	assert.Equal(t, 0, f.committed(t, "2025-07-10"))
	assert.Equal(t, 1, f.committed(t, "2025-07-11"))
}

func TestResolveConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("Accept uses overbooking allowance", func(t *testing.T) {
		f := newFixture(t, 1, &fakeRemote{})
		ch := f.channel(t, "OTA", "")
		_, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-1"))
		require.NoError(t, err)
		result, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-2"))
		require.NoError(t, err)

		// No allowance yet: accepting fails and the conflict stays open.
		_, err = f.sync.ResolveConflict(ctx, result.Conflict.ID, ActionAccept, "")
		assert.ErrorIs(t, err, inventory.ErrCapacityExhausted)
		still, err := f.sync.GetConflict(ctx, result.Conflict.ID)
		require.NoError(t, err)
		assert.Equal(t, ConflictOpen, still.Status)

		_, err = f.cal.SetOverride(ctx, f.rt.ID, bizdate.MustParse("2025-07-10"), bizdate.MustParse("2025-07-11"),
			inventory.Override{OverbookingAllowance: 1})
		require.NoError(t, err)

		resolved, err := f.sync.ResolveConflict(ctx, result.Conflict.ID, ActionAccept, "")
		require.NoError(t, err)
		assert.Equal(t, ConflictAccepted, resolved.Status)
		assert.NotEmpty(t, resolved.ReservationID)
		assert.Equal(t, 2, f.committed(t, "2025-07-10"))

		r, err := f.res.GetByID(ctx, resolved.ReservationID)
		require.NoError(t, err)
		assert.True(t, r.Overbooked)

		_, err = f.sync.ResolveConflict(ctx, result.Conflict.ID, ActionReject, "")
		assert.ErrorIs(t, err, ErrConflictResolved)
	})

	t.Run("Reject notifies channel", func(t *testing.T) {
		remote := &fakeRemote{}
		f := newFixture(t, 0, remote)
		ch := f.channel(t, "OTA", "")
		result, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-3"))
		require.NoError(t, err)

		resolved, err := f.sync.ResolveConflict(ctx, result.Conflict.ID, ActionReject, "sold out")
		require.NoError(t, err)
		assert.Equal(t, ConflictRejected, resolved.Status)
		require.Len(t, remote.notices, 1)
		assert.Equal(t, "EXT-3", remote.notices[0].ExternalRef)
		assert.Equal(t, "sold out", remote.notices[0].Note)
	})

	t.Run("Reject records failed notification", func(t *testing.T) {
		remote := &fakeRemote{failWith: errors.New("connection refused")}
		f := newFixture(t, 0, remote)
		ch := f.channel(t, "OTA", "")
		result, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-4"))
		require.NoError(t, err)

		resolved, err := f.sync.ResolveConflict(ctx, result.Conflict.ID, ActionReject, "")
		require.NoError(t, err)
		assert.Equal(t, ConflictRejected, resolved.Status)
		assert.Contains(t, resolved.NotifyError, "connection refused")
	})

	t.Run("Invalid action", func(t *testing.T) {
		f := newFixture(t, 0, &fakeRemote{})
		_, err := f.sync.ResolveConflict(ctx, "any", "maybe", "")
		assert.ErrorIs(t, err, ErrInvalidResolution)
	})
}

func TestChannelCancellation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1, &fakeRemote{})
	ch := f.channel(t, "OTA", "")

	_, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-1"))
	require.NoError(t, err)
	conflict, err := f.sync.SyncBooking(ctx, ch.ID, booking("EXT-2"))
	require.NoError(t, err)

	cancel := booking("EXT-1")
	cancel.Cancelled = true
	result, err := f.sync.SyncBooking(ctx, ch.ID, cancel)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, result.Outcome)
	assert.Equal(t, reservation.StatusCancelled, result.Reservation.Status)
	assert.Equal(t, 0, f.committed(t, "2025-07-10"))

	// Repeating the cancellation is harmless.
	result, err = f.sync.SyncBooking(ctx, ch.ID, cancel)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, result.Outcome)

	withdraw := booking("EXT-2")
	withdraw.Cancelled = true
	result, err = f.sync.SyncBooking(ctx, ch.ID, withdraw)
	require.NoError(t, err)
	assert.Equal(t, ConflictWithdrawn, result.Conflict.Status)
	assert.Equal(t, conflict.Conflict.ID, result.Conflict.ID)

	unknown := booking("EXT-404")
	unknown.Cancelled = true
	_, err = f.sync.SyncBooking(ctx, ch.ID, unknown)
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestPollOverHTTP(t *testing.T) {
	ctx := context.Background()
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Feed{Bookings: []ExternalBooking{booking("FEED-1"), booking("FEED-2")}})
	}))
	defer srv.Close()

	remote := NewHTTPRemote(2*time.Second, 0, zap.NewNop())
	f := newFixture(t, 1, remote)
	a := f.channel(t, "A", srv.URL+"/a")
	f.channel(t, "B", "")

	report, err := f.sync.Poll(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Conflicts)

	reports, err := f.sync.PollAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Duplicate)
	assert.Equal(t, 1, reports[0].Conflicts)
	assert.Equal(t, 2, hits)

	polled, err := f.sync.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.NotNil(t, polled.LastPolledAt)
}

func TestPollFeedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	remote := NewHTTPRemote(time.Second, 0, zap.NewNop())
	f := newFixture(t, 1, remote)
	ch := f.channel(t, "A", srv.URL)

	_, err := f.sync.Poll(context.Background(), ch.ID)
	assert.ErrorIs(t, err, ErrFeedUnavailable)

	_, err = f.sync.PollAll(context.Background())
	assert.ErrorIs(t, err, ErrFeedUnavailable)
}
