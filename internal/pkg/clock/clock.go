// Package clock supplies the business "now" to services so tests can pin it.
package clock

import (
	"sync"
	"time"

	"github.com/nekogravitycat/hotel-pms-backend/internal/pkg/bizdate"
)

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

// Today returns the business date of c in loc.
func Today(c Clock, loc *time.Location) bizdate.Date {
	if loc == nil {
		loc = time.UTC
	}
	return bizdate.Of(c.Now().In(loc))
}

type systemClock struct{}

// System returns a Clock backed by time.Now.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a settable clock for tests and simulations.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock set to t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// At returns a Manual clock set to noon UTC on the given date.
func At(d bizdate.Date) *Manual {
	return NewManual(d.Time().Add(12 * time.Hour))
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// SetDate moves the clock to noon UTC on the given date.
func (m *Manual) SetDate(d bizdate.Date) {
	m.Set(d.Time().Add(12 * time.Hour))
}
