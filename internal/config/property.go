package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
)

// Property is the YAML property file: settings plus a seed catalogue.
type Property struct {
	Code               string          `yaml:"code"`
	Name               string          `yaml:"name"`
	Timezone           string          `yaml:"timezone"`
	TaxRate            decimal.Decimal `yaml:"tax_rate"`
	ServiceChargeRate  decimal.Decimal `yaml:"service_charge_rate"`
	Billing            string          `yaml:"billing"` // prebill or nightly
	CityLedgerAccounts []string        `yaml:"city_ledger_accounts"`
	Operators          []OperatorSeed  `yaml:"operators"`
	RoomTypes          []RoomTypeSeed  `yaml:"room_types"`
	Channels           []ChannelSeed   `yaml:"channels"`

	location *time.Location
}

type OperatorSeed struct {
	Email        string `yaml:"email"`
	Role         string `yaml:"role"`
	PasswordHash string `yaml:"password_hash"`
}

type RoomTypeSeed struct {
	Code           string          `yaml:"code"`
	Name           string          `yaml:"name"`
	Description    string          `yaml:"description"`
	MaxOccupancy   int             `yaml:"max_occupancy"`
	BaseRate       decimal.Decimal `yaml:"base_rate"`
	TotalInventory int             `yaml:"total_inventory"`
	RatePlans      []RatePlanSeed  `yaml:"rate_plans"`
	Rooms          []RoomSeed      `yaml:"rooms"`
}

type RatePlanSeed struct {
	Code                string          `yaml:"code"`
	Name                string          `yaml:"name"`
	BaseRate            decimal.Decimal `yaml:"base_rate"`
	MinStay             int             `yaml:"min_stay"`
	MaxStay             int             `yaml:"max_stay"`
	MinAdvanceDays      int             `yaml:"min_advance_days"`
	MaxAdvanceDays      int             `yaml:"max_advance_days"`
	DaysOfWeek          []string        `yaml:"days_of_week"`
	ValidFrom           *bizdate.Date   `yaml:"valid_from"`
	ValidTo             *bizdate.Date   `yaml:"valid_to"`
	FreeCancelDays      int             `yaml:"free_cancel_days"`
	PenaltyNights       int             `yaml:"penalty_nights"`
	NoShowPenaltyNights int             `yaml:"no_show_penalty_nights"`
}

type RoomSeed struct {
	Number string `yaml:"number"`
	Floor  int    `yaml:"floor"`
}

type ChannelSeed struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	Secret      string `yaml:"secret"`
	FeedURL     string `yaml:"feed_url"`
	CallbackURL string `yaml:"callback_url"`
}

// DefaultProperty is used when no property file is configured.
func DefaultProperty() *Property {
	return &Property{
		Code:              "HOTEL",
		Name:              "Hotel",
		Timezone:          "UTC",
		TaxRate:           decimal.RequireFromString("0.125"),
		ServiceChargeRate: decimal.RequireFromString("0.18"),
		Billing:           "prebill",
		location:          time.UTC,
	}
}

// LoadProperty reads and validates a YAML property file.
func LoadProperty(path string) (*Property, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read property file failed: %w", err)
	}
	return ParseProperty(raw)
}

// ParseProperty decodes a property document. Missing settings take the defaults.
func ParseProperty(raw []byte) (*Property, error) {
	p := DefaultProperty()
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("parse property file failed: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid property file: %w", err)
	}
	return p, nil
}

func (p *Property) validate() error {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", p.Timezone, err)
	}
	p.location = loc

	if p.TaxRate.IsNegative() || p.ServiceChargeRate.IsNegative() {
		return errors.New("rates cannot be negative")
	}
	switch p.Billing {
	case "prebill", "nightly":
	default:
		return fmt.Errorf("billing %q must be prebill or nightly", p.Billing)
	}

	seen := make(map[string]bool)
	for _, rt := range p.RoomTypes {
		code := strings.ToUpper(rt.Code)
		if code == "" {
			return errors.New("room type code is required")
		}
		if seen[code] {
			return fmt.Errorf("duplicate room type code %q", rt.Code)
		}
		seen[code] = true
		for _, plan := range rt.RatePlans {
			if _, err := plan.Weekdays(); err != nil {
				return fmt.Errorf("rate plan %q: %w", plan.Code, err)
			}
		}
	}
	return nil
}

// Location returns the property's time zone.
func (p *Property) Location() *time.Location {
	if p.location == nil {
		return time.UTC
	}
	return p.location
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// Weekdays parses day names such as "fri" or "Saturday".
func (r RatePlanSeed) Weekdays() ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(r.DaysOfWeek))
	for _, name := range r.DaysOfWeek {
		key := strings.ToLower(strings.TrimSpace(name))
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := weekdays[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		out = append(out, d)
	}
	return out, nil
}
