package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/nekogravitycat/hotel-pms-backend/internal/channel"
	"github.com/nekogravitycat/hotel-pms-backend/internal/reservation"
	"github.com/nekogravitycat/hotel-pms-backend/internal/room"
	"github.com/nekogravitycat/hotel-pms-backend/internal/roomtype"
)

func TestMapError(t *testing.T) {
	unique := func(constraint string) error {
		return fmt.Errorf("save failed: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint})
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"room type code", unique("room_types_code_key"), roomtype.ErrCodeTaken},
		{"rate plan code", unique("rate_plans_code_key"), roomtype.ErrCodeTaken},
		{"room number", unique("rooms_number_key"), room.ErrNumberTaken},
		{"confirmation code", unique("reservations_confirmation_code_key"), reservation.ErrDuplicateBooking},
		{"external ref", unique("reservations_source_external_ref_key"), reservation.ErrDuplicateBooking},
		{"channel code", unique("channels_code_key"), channel.ErrCodeTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}

	t.Run("Other errors pass through", func(t *testing.T) {
		fk := fmt.Errorf("save failed: %w", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})
		assert.Equal(t, fk, mapError(fk))

		plain := errors.New("boom")
		assert.Equal(t, plain, mapError(plain))

		other := unique("something_else_key")
		assert.Equal(t, other, mapError(other))
	})
}

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "x", nullable("x"))

	s := "y"
	assert.Equal(t, "y", deref(&s))
	assert.Equal(t, "", deref(nil))
}

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS public.reservations")
	assert.Contains(t, schema, "reservations_source_external_ref_key")
}
