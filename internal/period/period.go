// Package period handles calendar-month arithmetic in the business time zone.
package period

import (
	"fmt"
	"time"
)

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month int
}

// Of returns the month t falls in when viewed from loc.
func Of(t time.Time, loc *time.Location) Month {
	local := t.In(loc)
	return Month{Year: local.Year(), Month: int(local.Month())}
}

// Valid reports whether the month number is 1..12 and the year is plausible.
func (m Month) Valid() bool {
	return m.Month >= 1 && m.Month <= 12 && m.Year >= 2000 && m.Year <= 2100
}

// Bounds returns [start, end) of the month in loc, converted to UTC for querying.
func (m Month) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)
	return start.UTC(), end.UTC()
}

// YearBounds returns [start, end) of the year in loc, converted to UTC.
func YearBounds(year int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(1, 0, 0).UTC()
}

// Compact renders the month as YYYYMM.
func (m Month) Compact() string {
	return fmt.Sprintf("%04d%02d", m.Year, m.Month)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}
