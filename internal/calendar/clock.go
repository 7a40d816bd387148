package calendar

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the zone all scheduling decisions are made in.
const DefaultTimezone = "Europe/Rome"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// Calendar resolves "today" in one fixed zone, independent of the host's
// local zone.
type Calendar struct {
	loc   *time.Location
	clock Clock
}

// NewCalendar builds a Calendar. A nil clock means the system clock; a nil
// location means UTC.
func NewCalendar(loc *time.Location, clock Clock) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Calendar{loc: loc, clock: clock}
}

// LoadCalendar builds a system-clock Calendar for the named IANA zone.
func LoadCalendar(zone string) (*Calendar, error) {
	if zone == "" {
		zone = DefaultTimezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return NewCalendar(loc, SystemClock{}), nil
}

// Today is the current date in the calendar's zone.
func (c *Calendar) Today() Date {
	return FromTime(c.clock.Now().In(c.loc))
}

// Yesterday is Today minus one day.
func (c *Calendar) Yesterday() Date {
	return c.Today().AddDays(-1)
}

// Now is the current instant in the calendar's zone.
func (c *Calendar) Now() time.Time {
	return c.clock.Now().In(c.loc)
}

func (c *Calendar) Location() *time.Location { return c.loc }
