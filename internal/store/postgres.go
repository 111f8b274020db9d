package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/hotel-pms-backend/internal/channel"
	"github.com/nekogravitycat/hotel-pms-backend/internal/inventory"
	"github.com/nekogravitycat/hotel-pms-backend/internal/ledger"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
	"github.com/nekogravitycat/hotel-pms-backend/internal/room"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
)

//go:embed schema.sql
var schema string

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema failed: %w", err)
	}
	return nil
}

func exec(ctx context.Context, q execer, b squirrel.Sqlizer, what string) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query failed: %w", what, err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return mapError(fmt.Errorf("%s failed: %w", what, err))
	}
	return nil
}

// mapError turns unique violations into the domain errors they stand for.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "room_types_code_key", "rate_plans_code_key":
		return roomtype.ErrCodeTaken
	case "rooms_number_key":
		return room.ErrNumberTaken
	case "reservations_confirmation_code_key", "reservations_source_external_ref_key":
		return reservation.ErrDuplicateBooking
	case "channels_code_key":
		return channel.ErrCodeTaken
	}
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Postgres) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction failed: %w", err)
	}
	return nil
}

func (s *Postgres) SaveRoomType(ctx context.Context, rt *roomtype.RoomType) error {
	q := psql.Insert("public.room_types").
		Columns("id", "code", "name", "description", "max_occupancy", "base_rate", "total_inventory", "created_at", "updated_at").
		Values(rt.ID, rt.Code, rt.Name, rt.Description, rt.MaxOccupancy, rt.BaseRate, rt.TotalInventory, rt.CreatedAt, rt.UpdatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
			max_occupancy = EXCLUDED.max_occupancy, base_rate = EXCLUDED.base_rate,
			total_inventory = EXCLUDED.total_inventory, updated_at = EXCLUDED.updated_at`)
	return exec(ctx, s.pool, q, "save room type")
}

func (s *Postgres) SaveRatePlan(ctx context.Context, p *roomtype.RatePlan) error {
	var from, to *time.Time
	if p.ValidFrom != nil {
		t := p.ValidFrom.Time()
		from = &t
	}
	if p.ValidTo != nil {
		t := p.ValidTo.Time()
		to = &t
	}
	q := psql.Insert("public.rate_plans").
		Columns("id", "code", "name", "room_type_id", "base_rate", "restrictions", "cancellation", "valid_from", "valid_to", "active", "created_at").
		Values(p.ID, p.Code, p.Name, p.RoomTypeID, p.BaseRate, p.Restrictions, p.Cancellation, from, to, p.Active, p.CreatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, base_rate = EXCLUDED.base_rate,
			restrictions = EXCLUDED.restrictions, cancellation = EXCLUDED.cancellation,
			valid_from = EXCLUDED.valid_from, valid_to = EXCLUDED.valid_to, active = EXCLUDED.active`)
	return exec(ctx, s.pool, q, "save rate plan")
}

func (s *Postgres) SaveInventoryDays(ctx context.Context, days []inventory.Day) error {
	return saveDays(ctx, s.pool, days)
}

func saveDays(ctx context.Context, q execer, days []inventory.Day) error {
	if len(days) == 0 {
		return nil
	}
	// A statement may touch a row only once.
	latest := make(map[string]int, len(days))
	var order []string
	for i, d := range days {
		k := d.RoomTypeID + d.Date.String()
		if _, ok := latest[k]; !ok {
			order = append(order, k)
		}
		latest[k] = i
	}

	b := psql.Insert("public.inventory_days").
		Columns("room_type_id", "date", "total", "committed", "closed_to_arrival", "closed_to_departure", "min_los", "max_los", "overbooking_allowance")
	for _, k := range order {
		d := days[latest[k]]
		o := d.Override
		b = b.Values(d.RoomTypeID, d.Date.Time(), d.Total, d.Committed, o.ClosedToArrival, o.ClosedToDeparture, o.MinLOS, o.MaxLOS, o.OverbookingAllowance)
	}
	b = b.Suffix(`ON CONFLICT (room_type_id, date) DO UPDATE SET total = EXCLUDED.total, committed = EXCLUDED.committed,
		closed_to_arrival = EXCLUDED.closed_to_arrival, closed_to_departure = EXCLUDED.closed_to_departure,
		min_los = EXCLUDED.min_los, max_los = EXCLUDED.max_los, overbooking_allowance = EXCLUDED.overbooking_allowance`)
	return exec(ctx, q, b, "save inventory")
}

func (s *Postgres) SaveRooms(ctx context.Context, rooms ...room.Room) error {
	return saveRooms(ctx, s.pool, rooms)
}

func saveRooms(ctx context.Context, q execer, rooms []room.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	latest := make(map[string]room.Room, len(rooms))
	var order []string
	for _, r := range rooms {
		if _, ok := latest[r.ID]; !ok {
			order = append(order, r.ID)
		}
		latest[r.ID] = r
	}

	b := psql.Insert("public.rooms").
		Columns("id", "number", "floor", "room_type_id", "physical", "housekeeping", "reservation_id", "blocked_from", "block_reason", "version", "updated_at")
	for _, id := range order {
		r := latest[id]
		b = b.Values(r.ID, r.Number, r.Floor, r.RoomTypeID, string(r.Physical), string(r.Housekeeping),
			nullable(r.ReservationID), string(r.BlockedFrom), r.BlockReason, r.Version, r.UpdatedAt)
	}
	b = b.Suffix(`ON CONFLICT (id) DO UPDATE SET physical = EXCLUDED.physical, housekeeping = EXCLUDED.housekeeping,
		reservation_id = EXCLUDED.reservation_id, blocked_from = EXCLUDED.blocked_from,
		block_reason = EXCLUDED.block_reason, version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`)
	return exec(ctx, q, b, "save rooms")
}

func (s *Postgres) SaveLedger(ctx context.Context, folios []ledger.Folio, txs []ledger.Transaction) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return saveLedger(ctx, tx, folios, txs)
	})
}

func saveLedger(ctx context.Context, q execer, folios []ledger.Folio, txs []ledger.Transaction) error {
	if len(folios) > 0 {
		b := psql.Insert("public.folios").
			Columns("id", "reservation_id", "status", "tax_rate", "service_charge_rate", "city_ledger_account", "opened_at", "closed_at", "version")
		for _, f := range folios {
			b = b.Values(f.ID, f.ReservationID, string(f.Status), f.Rates.Tax, f.Rates.ServiceCharge, f.CityLedgerAccount, f.OpenedAt, f.ClosedAt, f.Version)
		}
		b = b.Suffix(`ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status,
			city_ledger_account = EXCLUDED.city_ledger_account, closed_at = EXCLUDED.closed_at, version = EXCLUDED.version`)
		if err := exec(ctx, q, b, "save folios"); err != nil {
			return err
		}
	}
	if len(txs) > 0 {
		// Transactions are immutable; replays of the same id are ignored.
		b := psql.Insert("public.folio_transactions").
			Columns("id", "folio_id", "seq", "type", "amount", "description", "reference", "parent_id", "posted_at")
		for _, t := range txs {
			b = b.Values(t.ID, t.FolioID, t.Seq, string(t.Type), t.Amount, t.Description, t.Reference, nullable(t.ParentID), t.PostedAt)
		}
		b = b.Suffix("ON CONFLICT (id) DO NOTHING")
		if err := exec(ctx, q, b, "save folio transactions"); err != nil {
			return err
		}
	}
	return nil
}

// Commit writes a reservation change set in one database transaction.
func (s *Postgres) Commit(ctx context.Context, cs reservation.ChangeSet) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if len(cs.Reservations) > 0 {
			b := psql.Insert("public.reservations").
				Columns("id", "confirmation_code", "guest_name", "guest_email", "guest_phone", "room_type_id", "rate_plan_code",
					"room_id", "check_in", "check_out", "committed_to", "adults", "children", "status", "payment_status",
					"city_ledger_account", "rate", "tax_rate", "service_charge_rate", "discount", "total", "billing",
					"cancellation", "source", "external_ref", "overbooked", "created_at", "updated_at", "checked_in_at",
					"closed_at", "version")
			for _, r := range cs.Reservations {
				b = b.Values(r.ID, r.ConfirmationCode, r.Guest.Name, r.Guest.Email, r.Guest.Phone, r.RoomTypeID, r.RatePlanCode,
					nullable(r.RoomID), r.CheckIn.Time(), r.CheckOut.Time(), r.CommittedTo.Time(), r.Occupancy.Adults, r.Occupancy.Children,
					string(r.Status), string(r.PaymentStatus), r.CityLedgerAccount, r.Rate, r.Rates.Tax, r.Rates.ServiceCharge,
					r.Discount, r.Total, string(r.Billing), r.Cancellation, r.Source, nullable(r.ExternalRef), r.Overbooked,
					r.CreatedAt, r.UpdatedAt, r.CheckedInAt, r.ClosedAt, r.Version)
			}
			b = b.Suffix(`ON CONFLICT (id) DO UPDATE SET room_id = EXCLUDED.room_id, committed_to = EXCLUDED.committed_to,
				status = EXCLUDED.status, payment_status = EXCLUDED.payment_status,
				city_ledger_account = EXCLUDED.city_ledger_account, updated_at = EXCLUDED.updated_at,
				checked_in_at = EXCLUDED.checked_in_at, closed_at = EXCLUDED.closed_at, version = EXCLUDED.version`)
			if err := exec(ctx, tx, b, "save reservations"); err != nil {
				return err
			}
		}
		if err := saveRooms(ctx, tx, cs.Rooms); err != nil {
			return err
		}
		if err := saveDays(ctx, tx, cs.Inventory); err != nil {
			return err
		}
		return saveLedger(ctx, tx, cs.Folios, cs.Transactions)
	})
}

func (s *Postgres) SaveChannel(ctx context.Context, ch channel.Channel) error {
	q := psql.Insert("public.channels").
		Columns("id", "code", "name", "kind", "secret_hash", "feed_url", "callback_url", "active", "last_polled_at", "created_at").
		Values(ch.ID, ch.Code, ch.Name, string(ch.Kind), ch.SecretHash, ch.FeedURL, ch.CallbackURL, ch.Active, ch.LastPolledAt, ch.CreatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, secret_hash = EXCLUDED.secret_hash,
			feed_url = EXCLUDED.feed_url, callback_url = EXCLUDED.callback_url, active = EXCLUDED.active,
			last_polled_at = EXCLUDED.last_polled_at`)
	return exec(ctx, s.pool, q, "save channel")
}

func (s *Postgres) SaveConflict(ctx context.Context, c channel.Conflict) error {
	q := psql.Insert("public.channel_conflicts").
		Columns("id", "channel_id", "external_ref", "booking", "kind", "reason", "status", "reservation_id", "notify_error", "created_at", "resolved_at").
		Values(c.ID, c.ChannelID, c.ExternalRef, c.Booking, c.Kind, c.Reason, string(c.Status), nullable(c.ReservationID), c.NotifyError, c.CreatedAt, c.ResolvedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, reservation_id = EXCLUDED.reservation_id,
			notify_error = EXCLUDED.notify_error, resolved_at = EXCLUDED.resolved_at`)
	return exec(ctx, s.pool, q, "save channel conflict")
}
