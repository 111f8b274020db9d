package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/hotel-pms-backend/internal/channel"
	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
	"github.com/nekogravitycat/hotel-pms-backend/internal/room"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
)

func collect[T any](ctx context.Context, s *Postgres, b squirrel.SelectBuilder, what string, scan func(row pgx.CollectableRow) (T, error)) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query failed: %w", what, err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", what, err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("scan %s failed: %w", what, err)
	}
	return out, nil
}

// Load reads every persisted entity.
func (s *Postgres) Load(ctx context.Context) (*Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)

	snap.RoomTypes, err = collect(ctx, s, psql.Select("id", "code", "name", "description", "max_occupancy", "base_rate", "total_inventory", "created_at", "updated_at").
		From("public.room_types"), "room types",
		func(row pgx.CollectableRow) (*roomtype.RoomType, error) {
			var rt roomtype.RoomType
			err := row.Scan(&rt.ID, &rt.Code, &rt.Name, &rt.Description, &rt.MaxOccupancy, &rt.BaseRate, &rt.TotalInventory, &rt.CreatedAt, &rt.UpdatedAt)
			return &rt, err
		})
	if err != nil {
		return nil, err
	}

	snap.RatePlans, err = collect(ctx, s, psql.Select("id", "code", "name", "room_type_id", "base_rate", "restrictions", "cancellation", "valid_from", "valid_to", "active", "created_at").
		From("public.rate_plans"), "rate plans",
		func(row pgx.CollectableRow) (*roomtype.RatePlan, error) {
			var (
				p        roomtype.RatePlan
				from, to *time.Time
			)
			if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.RoomTypeID, &p.BaseRate, &p.Restrictions, &p.Cancellation, &from, &to, &p.Active, &p.CreatedAt); err != nil {
				return nil, err
			}
			if from != nil {
				d := bizdate.Of(*from)
				p.ValidFrom = &d
			}
			if to != nil {
				d := bizdate.Of(*to)
				p.ValidTo = &d
			}
			return &p, nil
		})
	if err != nil {
		return nil, err
	}

	snap.Rooms, err = collect(ctx, s, psql.Select("id", "number", "floor", "room_type_id", "physical", "housekeeping", "reservation_id", "blocked_from", "block_reason", "version", "updated_at").
		From("public.rooms"), "rooms",
		func(row pgx.CollectableRow) (room.Room, error) {
			var (
				r                                   room.Room
				physical, housekeeping, blockedFrom string
				reservationID                       *string
			)
			err := row.Scan(&r.ID, &r.Number, &r.Floor, &r.RoomTypeID, &physical, &housekeeping, &reservationID, &blockedFrom, &r.BlockReason, &r.Version, &r.UpdatedAt)
			r.Physical = room.PhysicalStatus(physical)
			r.Housekeeping = room.HousekeepingStatus(housekeeping)
			r.BlockedFrom = room.PhysicalStatus(blockedFrom)
			r.ReservationID = deref(reservationID)
			return r, err
		})
	if err != nil {
		return nil, err
	}

	snap.Inventory, err = collect(ctx, s, psql.Select("room_type_id", "date", "total", "committed", "closed_to_arrival", "closed_to_departure", "min_los", "max_los", "overbooking_allowance").
		From("public.inventory_days").OrderBy("room_type_id", "date"), "inventory",
		func(row pgx.CollectableRow) (inventory.Day, error) {
			var (
				d    inventory.Day
				date time.Time
			)
			o := &d.Override
			err := row.Scan(&d.RoomTypeID, &date, &d.Total, &d.Committed, &o.ClosedToArrival, &o.ClosedToDeparture, &o.MinLOS, &o.MaxLOS, &o.OverbookingAllowance)
			d.Date = bizdate.Of(date)
			return d, err
		})
	if err != nil {
		return nil, err
	}

	snap.Reservations, err = collect(ctx, s, psql.Select("id", "confirmation_code", "guest_name", "guest_email", "guest_phone", "room_type_id", "rate_plan_code",
		"room_id", "check_in", "check_out", "committed_to", "adults", "children", "status", "payment_status",
		"city_ledger_account", "rate", "tax_rate", "service_charge_rate", "discount", "total", "billing",
		"cancellation", "source", "external_ref", "overbooked", "created_at", "updated_at", "checked_in_at",
		"closed_at", "version").
		From("public.reservations"), "reservations",
		func(row pgx.CollectableRow) (reservation.Reservation, error) {
			var (
				r                              reservation.Reservation
				roomID, externalRef            *string
				checkIn, checkOut, committedTo time.Time
				status, paymentStatus, billing string
			)
			err := row.Scan(&r.ID, &r.ConfirmationCode, &r.Guest.Name, &r.Guest.Email, &r.Guest.Phone, &r.RoomTypeID, &r.RatePlanCode,
				&roomID, &checkIn, &checkOut, &committedTo, &r.Occupancy.Adults, &r.Occupancy.Children, &status, &paymentStatus,
				&r.CityLedgerAccount, &r.Rate, &r.Rates.Tax, &r.Rates.ServiceCharge, &r.Discount, &r.Total, &billing,
				&r.Cancellation, &r.Source, &externalRef, &r.Overbooked, &r.CreatedAt, &r.UpdatedAt, &r.CheckedInAt,
				&r.ClosedAt, &r.Version)
			r.RoomID = deref(roomID)
			r.ExternalRef = deref(externalRef)
			r.CheckIn, r.CheckOut, r.CommittedTo = bizdate.Of(checkIn), bizdate.Of(checkOut), bizdate.Of(committedTo)
			r.Status = reservation.Status(status)
			r.PaymentStatus = reservation.PaymentStatus(paymentStatus)
			r.Billing = reservation.BillingPolicy(billing)
			return r, err
		})
	if err != nil {
		return nil, err
	}

	snap.Folios, err = collect(ctx, s, psql.Select("id", "reservation_id", "status", "tax_rate", "service_charge_rate", "city_ledger_account", "opened_at", "closed_at", "version").
		From("public.folios"), "folios",
		func(row pgx.CollectableRow) (ledger.Folio, error) {
			var (
				f      ledger.Folio
				status string
			)
			err := row.Scan(&f.ID, &f.ReservationID, &status, &f.Rates.Tax, &f.Rates.ServiceCharge, &f.CityLedgerAccount, &f.OpenedAt, &f.ClosedAt, &f.Version)
			f.Status = ledger.FolioStatus(status)
			return f, err
		})
	if err != nil {
		return nil, err
	}

	snap.Transactions, err = collect(ctx, s, psql.Select("id", "folio_id", "seq", "type", "amount", "description", "reference", "parent_id", "posted_at").
		From("public.folio_transactions").OrderBy("seq"), "folio transactions",
		func(row pgx.CollectableRow) (ledger.Transaction, error) {
			var (
				t        ledger.Transaction
				typ      string
				parentID *string
			)
			err := row.Scan(&t.ID, &t.FolioID, &t.Seq, &typ, &t.Amount, &t.Description, &t.Reference, &parentID, &t.PostedAt)
			t.Type = ledger.Type(typ)
			t.ParentID = deref(parentID)
			return t, err
		})
	if err != nil {
		return nil, err
	}

	snap.Channels, err = collect(ctx, s, psql.Select("id", "code", "name", "kind", "secret_hash", "feed_url", "callback_url", "active", "last_polled_at", "created_at").
		From("public.channels"), "channels",
		func(row pgx.CollectableRow) (channel.Channel, error) {
			var (
				ch   channel.Channel
				kind string
			)
			err := row.Scan(&ch.ID, &ch.Code, &ch.Name, &kind, &ch.SecretHash, &ch.FeedURL, &ch.CallbackURL, &ch.Active, &ch.LastPolledAt, &ch.CreatedAt)
			ch.Kind = channel.Kind(kind)
			return ch, err
		})
	if err != nil {
		return nil, err
	}

	snap.Conflicts, err = collect(ctx, s, psql.Select("id", "channel_id", "external_ref", "booking", "kind", "reason", "status", "reservation_id", "notify_error", "created_at", "resolved_at").
		From("public.channel_conflicts").OrderBy("created_at"), "channel conflicts",
		func(row pgx.CollectableRow) (channel.Conflict, error) {
			var (
				c             channel.Conflict
				status        string
				reservationID *string
			)
			err := row.Scan(&c.ID, &c.ChannelID, &c.ExternalRef, &c.Booking, &c.Kind, &c.Reason, &status, &reservationID, &c.NotifyError, &c.CreatedAt, &c.ResolvedAt)
			c.Status = channel.ConflictStatus(status)
			c.ReservationID = deref(reservationID)
			return c, err
		})
	if err != nil {
		return nil, err
	}

	return &snap, nil
}
