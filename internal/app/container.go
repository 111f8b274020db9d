package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/hotel-pms-backend/internal/api"
	"github.com/nekogravitycat/hotel-pms-backend/internal/auth"
	"github.com/nekogravitycat/hotel-pms-backend/internal/channel"
	"github.com/nekogravitycat/hotel-pms-backend/internal/config"
	"github.com/nekogravitycat/hotel-pms-backend/internal/event"
	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	"github.com/nekogravitycat/hotel-pms-backend/internal/metrics"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/clock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/keylock"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
	"github.com/nekogravitycat/hotel-pms-backend/internal/room"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
	"github.com/nekogravitycat/hotel-pms-backend/internal/store"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string

	// Store defaults to store.Nop (memory only).
	Store store.Store
	// Publisher defaults to logging events.
	Publisher event.Publisher
	// Clock defaults to the system clock.
	Clock  clock.Clock
	Logger *zap.Logger

	JWTSecret   string
	JWTTTL      time.Duration
	BcryptCost  int
	LockTimeout time.Duration

	// Remote defaults to an HTTP client with ChannelTimeout.
	Remote         channel.Remote
	ChannelTimeout time.Duration

	Property *config.Property
	// Operators are added to those listed in the property file.
	Operators []auth.Operator
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router       *gin.Engine
	JWTManager   *auth.JWTManager
	Operators    *auth.Directory
	Catalog      roomtype.Service
	Calendar     *inventory.Calendar
	Rooms        *room.Tracker
	Ledger       *ledger.Ledger
	Reservations reservation.Service
	Channels     *channel.Synchronizer

	store    store.Store
	property *config.Property
	logger   *zap.Logger
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Store == nil {
		cfg.Store = store.Nop{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = event.NewLogPublisher(cfg.Logger)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Property == nil {
		cfg.Property = config.DefaultProperty()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 2 * time.Second
	}
	if cfg.Remote == nil {
		cfg.Remote = channel.NewHTTPRemote(cfg.ChannelTimeout, 2, cfg.Logger.Named("channel"))
	}
	metrics.Register()

	// Init Components
	passwordHasher := auth.NewBcryptPasswordHasherWithCost(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	operators := auth.NewDirectory(passwordHasher, append(seedOperators(cfg.Property), cfg.Operators...)...)
	locks := keylock.New(cfg.LockTimeout)

	// Inventory Module
	calendar := inventory.NewCalendar(locks, cfg.Store, cfg.Clock, cfg.Logger.Named("inventory"))
	calendar.SetPublisher(cfg.Publisher)

	// RoomType Module
	catalog := roomtype.NewService(cfg.Store, calendar, cfg.Clock, cfg.Logger.Named("roomtype"))

	// Room Module
	rooms := room.NewTracker(locks, cfg.Store, catalog, cfg.Publisher, cfg.Clock, cfg.Logger.Named("room"))

	// Ledger Module
	folios := ledger.New(locks, cfg.Store, cfg.Publisher, cfg.Clock, cfg.Logger.Named("ledger"))

	// Reservation Module
	reservations := reservation.NewService(reservation.Deps{
		Locks:     locks,
		Calendar:  calendar,
		Rooms:     rooms,
		Ledger:    folios,
		Catalog:   catalog,
		Persister: cfg.Store,
		Publisher: cfg.Publisher,
		Clock:     cfg.Clock,
		Settings: reservation.Settings{
			TaxRate:            cfg.Property.TaxRate,
			ServiceChargeRate:  cfg.Property.ServiceChargeRate,
			Billing:            reservation.BillingPolicy(cfg.Property.Billing),
			Location:           cfg.Property.Location(),
			CityLedgerAccounts: cfg.Property.CityLedgerAccounts,
		},
		Logger: cfg.Logger.Named("reservation"),
	})

	// Channel Module
	channels := channel.NewSynchronizer(channel.Deps{
		Locks:        locks,
		Reservations: reservations,
		Catalog:      catalog,
		Persister:    cfg.Store,
		Remote:       cfg.Remote,
		Hasher:       passwordHasher,
		Publisher:    cfg.Publisher,
		Clock:        cfg.Clock,
		Logger:       cfg.Logger.Named("channel"),
	})

	// Router
	router := api.NewRouter(api.Config{
		IsProduction: cfg.IsProduction,
		ProdOrigins:  cfg.ProdOrigins,
		Logger:       cfg.Logger.Named("http"),
		Operators:    operators,
		JWTManager:   jwtManager,
		Catalog:      catalog,
		Calendar:     calendar,
		Rooms:        rooms,
		Ledger:       folios,
		Reservations: reservations,
		Channels:     channels,
	})

	return &Container{
		Router:       router,
		JWTManager:   jwtManager,
		Operators:    operators,
		Catalog:      catalog,
		Calendar:     calendar,
		Rooms:        rooms,
		Ledger:       folios,
		Reservations: reservations,
		Channels:     channels,
		store:        cfg.Store,
		property:     cfg.Property,
		logger:       cfg.Logger,
	}
}

func seedOperators(p *config.Property) []auth.Operator {
	out := make([]auth.Operator, 0, len(p.Operators))
	for _, op := range p.Operators {
		out = append(out, auth.Operator{
			Email:        op.Email,
			Role:         auth.Role(op.Role),
			PasswordHash: op.PasswordHash,
		})
	}
	return out
}

// Restore reloads persisted state. Room types come first so the other
// modules can resolve them.
func (c *Container) Restore(ctx context.Context) error {
	snap, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot failed: %w", err)
	}

	c.Catalog.Restore(snap.RoomTypes, snap.RatePlans)
	c.Calendar.Restore(snap.Inventory)
	c.Rooms.Restore(snap.Rooms)
	c.Ledger.Restore(snap.Folios, snap.Transactions)
	c.Reservations.Restore(snap.Reservations)
	c.Channels.Restore(snap.Channels, snap.Conflicts)

	c.logger.Info("state restored",
		zap.Int("room_types", len(snap.RoomTypes)),
		zap.Int("rooms", len(snap.Rooms)),
		zap.Int("reservations", len(snap.Reservations)),
		zap.Int("channels", len(snap.Channels)))
	return nil
}

// Seed creates the catalogue, rooms and channels of the property file that
// do not exist yet. Existing entries are left untouched.
func (c *Container) Seed(ctx context.Context) error {
	for _, rts := range c.property.RoomTypes {
		rt, err := c.Catalog.GetByCode(ctx, rts.Code)
		if errors.Is(err, roomtype.ErrNotFound) {
			rt, err = c.Catalog.Create(ctx, roomtype.CreateRequest{
				Code:           rts.Code,
				Name:           rts.Name,
				Description:    rts.Description,
				MaxOccupancy:   rts.MaxOccupancy,
				BaseRate:       rts.BaseRate,
				TotalInventory: rts.TotalInventory,
			})
		}
		if err != nil {
			return fmt.Errorf("seed room type %s: %w", rts.Code, err)
		}

		for _, ps := range rts.RatePlans {
			if _, err := c.Catalog.GetRatePlan(ctx, ps.Code); err == nil {
				continue
			}
			days, err := ps.Weekdays()
			if err != nil {
				return fmt.Errorf("seed rate plan %s: %w", ps.Code, err)
			}
			_, err = c.Catalog.CreateRatePlan(ctx, roomtype.CreateRatePlanRequest{
				Code:       ps.Code,
				Name:       ps.Name,
				RoomTypeID: rt.ID,
				BaseRate:   ps.BaseRate,
				Restrictions: roomtype.Restrictions{
					MinStay:        ps.MinStay,
					MaxStay:        ps.MaxStay,
					MinAdvanceDays: ps.MinAdvanceDays,
					MaxAdvanceDays: ps.MaxAdvanceDays,
					DaysOfWeek:     days,
				},
				Cancellation: roomtype.CancellationPolicy{
					FreeCancelDays:      ps.FreeCancelDays,
					PenaltyNights:       ps.PenaltyNights,
					NoShowPenaltyNights: ps.NoShowPenaltyNights,
				},
				ValidFrom: ps.ValidFrom,
				ValidTo:   ps.ValidTo,
			})
			if err != nil {
				return fmt.Errorf("seed rate plan %s: %w", ps.Code, err)
			}
		}

		for _, rs := range rts.Rooms {
			_, err := c.Rooms.Register(ctx, room.CreateRequest{Number: rs.Number, Floor: rs.Floor, RoomTypeID: rt.ID})
			if err != nil && !errors.Is(err, room.ErrNumberTaken) {
				return fmt.Errorf("seed room %s: %w", rs.Number, err)
			}
		}
	}

	for _, cs := range c.property.Channels {
		_, err := c.Channels.Register(ctx, channel.RegisterRequest{
			Code:        cs.Code,
			Name:        cs.Name,
			Kind:        channel.Kind(cs.Kind),
			Secret:      cs.Secret,
			FeedURL:     cs.FeedURL,
			CallbackURL: cs.CallbackURL,
		})
		if err != nil && !errors.Is(err, channel.ErrCodeTaken) {
			return fmt.Errorf("seed channel %s: %w", cs.Code, err)
		}
	}
	return nil
}
