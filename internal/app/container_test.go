package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/hotel-pms-backend/internal/api"
	"github.com/nekogravitycat/hotel-pms-backend/internal/app"
	"github.com/nekogravitycat/hotel-pms-backend/internal/auth"
	"github.com/nekogravitycat/hotel-pms-backend/internal/channel"
	channelHttp "github.com/nekogravitycat/hotel-pms-backend/internal/channel/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/config"
	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	inventoryHttp "github.com/nekogravitycat/hotel-pms-backend/internal/inventory/http"
	ledgerHttp "github.com/nekogravitycat/hotel-pms-backend/internal/ledger/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	reservationHttp "github.com/nekogravitycat/hotel-pms-backend/internal/reservation/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/room"
	roomHttp "github.com/nekogravitycat/hotel-pms-backend/internal/room/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
	roomtypeHttp "github.com/nekogravitycat/hotel-pms-backend/internal/roomtype/http"
	"github.com/nekogravitycat/hotel-pms-backend/internal/store"
)

const (
	managerEmail   = "manager@hotel.test"
	frontDeskEmail = "desk@hotel.test"
	testPassword   = "s3cret-pass"
)

var today = bizdate.New(2026, time.October, 19)

type testApp struct {
	*app.Container
	events *event.Recorder
}

func newTestApp(t *testing.T, st store.Store) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hasher := auth.NewBcryptPasswordHasherWithCost(4)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err, "Failed to hash password")

	events := event.NewRecorder()
	c := app.NewContainer(app.Config{
		Store:      st,
		Publisher:  events,
		Clock:      clock.At(today),
		JWTSecret:  "test-secret",
		JWTTTL:     30 * time.Minute,
		BcryptCost: 4,
		Property:   config.DefaultProperty(),
		Operators: []auth.Operator{
			{Email: managerEmail, Role: auth.RoleManager, PasswordHash: hash},
			{Email: frontDeskEmail, Role: auth.RoleFrontDesk, PasswordHash: hash},
		},
	})
	return &testApp{Container: c, events: events}
}

func (a *testApp) executeRequest(method, path string, body any, token string) *httptest.ResponseRecorder {
	return a.executeRequestWithHeader(method, path, body, token, nil)
}

func (a *testApp) executeRequestWithHeader(method, path string, body any, token string, header map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req, _ := http.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(t *testing.T, email string) string {
	t.Helper()
	w := a.executeRequest("POST", "/v1/auth/login", api.LoginRequest{Email: email, Password: testPassword}, "")
	require.Equal(t, http.StatusOK, w.Code, "Login should succeed: %s", w.Body.String())

	var resp api.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func (a *testApp) createRoomType(t *testing.T, token, code string, units int) roomtypeHttp.RoomTypeResponse {
	t.Helper()
	w := a.executeRequest("POST", "/v1/room-types", roomtypeHttp.CreateRequest{
		Code:           code,
		Name:           "Room " + code,
		MaxOccupancy:   2,
		BaseRate:       decimal.NewFromInt(100),
		TotalInventory: units,
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[roomtypeHttp.RoomTypeResponse](t, w)
}

func TestAuth(t *testing.T) {
	a := newTestApp(t, nil)

	t.Run("Login with wrong password", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/auth/login", api.LoginRequest{Email: managerEmail, Password: "nope"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Me returns the operator", func(t *testing.T) {
		token := a.login(t, frontDeskEmail)
		w := a.executeRequest("GET", "/v1/me", nil, token)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[api.MeResponse](t, w)
		assert.Equal(t, frontDeskEmail, resp.Operator.Email)
		assert.Equal(t, string(auth.RoleFrontDesk), resp.Operator.Role)
	})

	t.Run("Protected routes require a token", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/room-types", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Front desk cannot manage the catalogue", func(t *testing.T) {
		token := a.login(t, frontDeskEmail)
		w := a.executeRequest("POST", "/v1/room-types", roomtypeHttp.CreateRequest{
			Code: "STD", Name: "Standard", MaxOccupancy: 2, TotalInventory: 1,
		}, token)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Health and metrics are public", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, a.executeRequest("GET", "/healthz", nil, "").Code)
		assert.Equal(t, http.StatusOK, a.executeRequest("GET", "/metrics", nil, "").Code)
	})
}

func TestReservationLifecycle(t *testing.T) {
	a := newTestApp(t, nil)
	managerToken := a.login(t, managerEmail)
	deskToken := a.login(t, frontDeskEmail)

	rt := a.createRoomType(t, managerToken, "STD", 1)

	var roomID string
	var res reservationHttp.ReservationResponse

	t.Run("Register a room", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/rooms", roomHttp.CreateRequest{Number: "101", Floor: 1, RoomTypeID: rt.ID}, managerToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		roomID = decode[roomHttp.RoomResponse](t, w).ID
	})

	t.Run("Availability before booking", func(t *testing.T) {
		path := fmt.Sprintf("/v1/availability?room_type_id=%s&check_in=%s&check_out=%s", rt.ID, today, today.AddDays(2))
		w := a.executeRequest("GET", path, nil, deskToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.True(t, decode[map[string]any](t, w)["available"].(bool))
	})

	t.Run("Create a guaranteed reservation", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/reservations", reservationHttp.CreateRequest{
			Guest:         reservationHttp.GuestBody{Name: "Ada Guest", Email: "ada@example.com"},
			RoomTypeID:    rt.ID,
			CheckIn:       today,
			CheckOut:      today.AddDays(2),
			Adults:        2,
			PaymentStatus: "authorized",
		}, deskToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		res = decode[reservationHttp.ReservationResponse](t, w)
		assert.Equal(t, "confirmed", res.Status)
		assert.Equal(t, 2, res.Nights)
		assert.NotEmpty(t, res.ConfirmationCode)
	})

	t.Run("Last unit is gone", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/reservations", reservationHttp.CreateRequest{
			Guest:         reservationHttp.GuestBody{Name: "Late Guest"},
			RoomTypeID:    rt.ID,
			CheckIn:       today.AddDays(1),
			CheckOut:      today.AddDays(3),
			PaymentStatus: "paid",
		}, deskToken)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "CapacityExhausted", decode[map[string]any](t, w)["kind"])
	})

	t.Run("Lookup by confirmation code", func(t *testing.T) {
		w := a.executeRequest("GET", "/v1/reservations/by-code/"+res.ConfirmationCode, nil, deskToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, res.ID, decode[reservationHttp.ReservationResponse](t, w).ID)
	})

	t.Run("Check-in needs a room", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/reservations/"+res.ID+"/check-in", nil, deskToken)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	var folio ledgerHttp.FolioResponse

	t.Run("Assign and check in", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/reservations/"+res.ID+"/assign-room", reservationHttp.AssignRoomRequest{RoomID: roomID}, deskToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = a.executeRequest("POST", "/v1/reservations/"+res.ID+"/check-in", nil, deskToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		folio = decode[ledgerHttp.FolioResponse](t, w)
		assert.Equal(t, "open", folio.Status)
		assert.True(t, folio.Totals.Balance.IsPositive(), "prebill posts the stay at check-in")

		w = a.executeRequest("GET", "/v1/rooms/"+roomID, nil, deskToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, string(room.PhysicalOccupied), decode[roomHttp.RoomResponse](t, w).Physical)
	})

	t.Run("Check-out refuses an open balance", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/reservations/"+res.ID+"/check-out", nil, deskToken)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "OutstandingBalance", decode[map[string]any](t, w)["kind"])
	})

	t.Run("Settle and check out", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/folios/"+folio.ID+"/transactions", ledgerHttp.PostRequest{
			Type:   "payment",
			Amount: folio.Totals.Balance,
		}, deskToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = a.executeRequest("POST", "/v1/reservations/"+res.ID+"/check-out", nil, deskToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		closed := decode[ledgerHttp.FolioResponse](t, w)
		assert.Equal(t, "closed", closed.Status)
		assert.True(t, closed.Totals.Balance.IsZero())

		w = a.executeRequest("GET", "/v1/rooms/"+roomID, nil, deskToken)
		assert.Equal(t, string(room.PhysicalVacantDirty), decode[roomHttp.RoomResponse](t, w).Physical)

		w = a.executeRequest("GET", "/v1/reservations/"+res.ID, nil, deskToken)
		assert.Equal(t, "checked-out", decode[reservationHttp.ReservationResponse](t, w).Status)
	})

	t.Run("Events were published", func(t *testing.T) {
		assert.Len(t, a.events.OfType(event.ReservationCreated), 1)
		assert.Len(t, a.events.OfType(event.ReservationCheckedIn), 1)
		assert.Len(t, a.events.OfType(event.ReservationCheckedOut), 1)
	})
}

func TestChannelWebhook(t *testing.T) {
	a := newTestApp(t, nil)
	managerToken := a.login(t, managerEmail)
	rt := a.createRoomType(t, managerToken, "DLX", 1)

	const secret = "webhook-secret-123"
	var ch channelHttp.ChannelResponse

	t.Run("Register channel", func(t *testing.T) {
		w := a.executeRequest("POST", "/v1/channels", channelHttp.RegisterRequest{
			Code: "ota1", Name: "Some OTA", Kind: "ota", Secret: secret,
		}, managerToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		ch = decode[channelHttp.ChannelResponse](t, w)
		assert.Equal(t, "OTA1", ch.Code)
	})

	booking := func(ref string) channel.ExternalBooking {
		return channel.ExternalBooking{
			ExternalRef:  ref,
			RoomTypeCode: "DLX",
			CheckIn:      today.AddDays(5),
			CheckOut:     today.AddDays(7),
			GuestName:    "Channel Guest",
			Adults:       2,
		}
	}
	push := func(b channel.ExternalBooking, secret string) *httptest.ResponseRecorder {
		return a.executeRequestWithHeader("POST", "/v1/channels/"+ch.ID+"/bookings", b, "",
			map[string]string{channelHttp.SecretHeader: secret})
	}

	t.Run("Wrong secret", func(t *testing.T) {
		w := push(booking("A-1"), "not-the-secret")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Creates then deduplicates", func(t *testing.T) {
		w := push(booking("A-1"), secret)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		first := decode[channelHttp.SyncResponse](t, w)
		require.NotNil(t, first.Reservation)
		assert.Equal(t, "confirmed", first.Reservation.Status)

		w = push(booking("A-1"), secret)
		require.Equal(t, http.StatusOK, w.Code)
		again := decode[channelHttp.SyncResponse](t, w)
		assert.Equal(t, "duplicate", again.Outcome)
		assert.Equal(t, first.Reservation.ID, again.Reservation.ID)
	})

	var conflictID string

	t.Run("Overlapping booking becomes a conflict", func(t *testing.T) {
		w := push(booking("A-2"), secret)
		require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

		body := decode[struct {
			Kind     string                       `json:"kind"`
			Conflict channelHttp.ConflictResponse `json:"conflict"`
		}](t, w)
		assert.Equal(t, "ChannelConflict", body.Kind)
		assert.Equal(t, "open", body.Conflict.Status)
		conflictID = body.Conflict.ID
	})

	t.Run("Operator accepts the conflict", func(t *testing.T) {
		// Accepting commits against the overbooking allowance.
		w := a.executeRequest("PUT", "/v1/inventory/overrides", inventoryHttp.OverrideRequest{
			RoomTypeID:           rt.ID,
			From:                 today.AddDays(5),
			Through:              today.AddDays(6),
			OverbookingAllowance: 1,
		}, managerToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = a.executeRequest("GET", "/v1/channel-conflicts?status=open", nil, managerToken)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1, decode[map[string]any](t, w)["total"])

		w = a.executeRequest("POST", "/v1/channel-conflicts/"+conflictID+"/resolve",
			channelHttp.ResolveRequest{Action: "accept", Note: "walk-in cover"}, managerToken)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resolved := decode[channelHttp.ConflictResponse](t, w)
		assert.Equal(t, "accepted", resolved.Status)
		assert.NotEmpty(t, resolved.ReservationID)
	})

	t.Run("Channel cancellation", func(t *testing.T) {
		b := booking("A-1")
		b.Cancelled = true
		w := push(b, secret)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[channelHttp.SyncResponse](t, w)
		assert.Equal(t, "cancelled", resp.Outcome)
		assert.Equal(t, "cancelled", resp.Reservation.Status)
	})
}

func TestSeed(t *testing.T) {
	raw := []byte(`
code: SEA
name: Seaside
timezone: UTC
room_types:
  - code: dlx
    name: Deluxe
    max_occupancy: 2
    base_rate: "150"
    total_inventory: 2
    rate_plans:
      - code: bar
        name: Best available
        base_rate: "150"
        free_cancel_days: 2
        penalty_nights: 1
    rooms:
      - number: "201"
        floor: 2
      - number: "202"
        floor: 2
channels:
  - code: ota1
    name: Some OTA
    kind: ota
    secret: webhook-secret-123
`)
	prop, err := config.ParseProperty(raw)
	require.NoError(t, err)

	c := app.NewContainer(app.Config{JWTSecret: "x", JWTTTL: time.Minute, BcryptCost: 4, Property: prop, Clock: clock.At(today)})
	ctx := context.Background()

	require.NoError(t, c.Seed(ctx))
	require.NoError(t, c.Seed(ctx), "Seeding twice should be a no-op")

	rt, err := c.Catalog.GetByCode(ctx, "DLX")
	require.NoError(t, err)
	assert.Equal(t, 2, rt.TotalInventory)

	plans, err := c.Catalog.ListRatePlans(ctx, rt.ID)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "BAR", plans[0].Code)

	_, total, err := c.Rooms.List(ctx, room.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	chans, err := c.Channels.List(ctx)
	require.NoError(t, err)
	assert.Len(t, chans, 1)
}

type snapshotStore struct {
	store.Nop
	snap *store.Snapshot
}

func (s snapshotStore) Load(context.Context) (*store.Snapshot, error) {
	return s.snap, nil
}

func TestRestore(t *testing.T) {
	rt := &roomtype.RoomType{
		ID:             "6a1f7a9e-0d55-4e43-9b0e-3f9f0d2c8a11",
		Code:           "STD",
		Name:           "Standard",
		MaxOccupancy:   2,
		BaseRate:       decimal.NewFromInt(90),
		TotalInventory: 1,
	}
	st := snapshotStore{snap: &store.Snapshot{
		RoomTypes: []*roomtype.RoomType{rt},
		Inventory: []inventory.Day{{RoomTypeID: rt.ID, Date: today, Total: 1, Committed: 1}},
	}}
	a := newTestApp(t, st)
	ctx := context.Background()

	require.NoError(t, a.Restore(ctx))

	got, err := a.Catalog.GetByCode(ctx, "std")
	require.NoError(t, err)
	assert.Equal(t, rt.ID, got.ID)

	avail, err := a.Calendar.Query(ctx, rt.ID, today, today.AddDays(1))
	require.NoError(t, err)
	assert.False(t, avail.Available, "restored commitment should hold the unit")

	avail, err = a.Calendar.Query(ctx, rt.ID, today.AddDays(1), today.AddDays(2))
	require.NoError(t, err)
	assert.True(t, avail.Available)
}
