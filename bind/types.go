package bind

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// TimeOfDay is a wall-clock time without a date or zone.
type TimeOfDay struct {
	Hour, Minute, Second, Nanosecond int
}

// TimeOfDayOf returns the time-of-day part of t.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Nanosecond: t.Nanosecond()}
}

// Value encodes the time as text with microsecond precision.
func (t TimeOfDay) Value() (driver.Value, error) {
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return nil, fmt.Errorf("invalid time of day %02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	us := int64(t.Hour)*int64(time.Hour/time.Microsecond) +
		int64(t.Minute)*int64(time.Minute/time.Microsecond) +
		int64(t.Second)*int64(time.Second/time.Microsecond) +
		int64(t.Nanosecond)/int64(time.Microsecond)
	return pgtype.Time{Microseconds: us, Valid: true}.Value()
}

// Date is a calendar date without a time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Value encodes the date as ISO 8601 text.
func (d Date) Value() (driver.Value, error) {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	if y, m, day := t.Date(); y != d.Year || m != d.Month || day != d.Day {
		return nil, fmt.Errorf("invalid date %04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
	return t.Format(time.DateOnly), nil
}

// Decimal is an arbitrary-precision number. It binds as text so no precision
// is lost on drivers without a native decimal type.
type Decimal = pgtype.Numeric

// ParseDecimal parses a decimal literal such as "12.50".
func ParseDecimal(s string) (Decimal, error) {
	var n Decimal
	if err := n.Scan(s); err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return n, nil
}

var (
	_ driver.Valuer = TimeOfDay{}
	_ driver.Valuer = Date{}
	_ driver.Valuer = Decimal{}
)
