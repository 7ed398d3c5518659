// Package civil provides calendar dates and wall-clock times without a zone,
// stored as Postgres DATE and TIME.
package civil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Date is a calendar day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current date in loc.
func Today(now time.Time, loc *time.Location) Date {
	return DateOf(now.In(loc))
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At combines d and t into an instant in loc.
func (d Date) At(t Time, loc *time.Location) time.Time {
	return d.In(loc).Add(time.Duration(t) * time.Second)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	return d.In(time.UTC).Compare(o.In(time.UTC))
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Date) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		*d = Date{}
		return nil
	}
	if v.InfinityModifier != pgtype.Finite {
		return fmt.Errorf("cannot scan infinite date")
	}
	*d = DateOf(v.Time)
	return nil
}

func (d Date) DateValue() (pgtype.Date, error) {
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}, nil
}

// Time is a wall-clock time of day in seconds since midnight.
type Time int

const day = 24 * 60 * 60

func NewTime(hour, minute, second int) Time {
	return Time(hour*3600 + minute*60 + second)
}

// TimeOf returns the wall-clock time of t in its own location.
func TimeOf(t time.Time) Time {
	return NewTime(t.Hour(), t.Minute(), t.Second())
}

// ParseTime accepts "15:04" and "15:04:05".
func ParseTime(s string) (Time, error) {
	for _, layout := range []string{"15:04", time.TimeOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
}

func (t Time) Hour() int   { return int(t) / 3600 }
func (t Time) Minute() int { return int(t) % 3600 / 60 }
func (t Time) Second() int { return int(t) % 60 }

func (t Time) Valid() bool { return t >= 0 && t < day }

func (t Time) String() string {
	if t.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t Time) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Time) UnmarshalText(b []byte) error {
	parsed, err := ParseTime(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	return t.UnmarshalText([]byte(s))
}

func (t *Time) ScanTime(v pgtype.Time) error {
	if !v.Valid {
		*t = 0
		return nil
	}
	*t = Time(v.Microseconds / 1_000_000)
	return nil
}

func (t Time) TimeValue() (pgtype.Time, error) {
	if !t.Valid() {
		return pgtype.Time{}, fmt.Errorf("time of day out of range: %d", int(t))
	}
	return pgtype.Time{Microseconds: int64(t) * 1_000_000, Valid: true}, nil
}
