// Package civil provides a calendar date without time-of-day or location.
package civil

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const layout = "2006-01-02"

// Date is a calendar date. The zero value means "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the date on which t falls in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Parse accepts YYYY-MM-DD or YYYY/MM/DD, month and day optionally unpadded.
func Parse(s string) (Date, error) {
	for _, l := range []string{"2006-1-2", "2006/1/2"} {
		if t, err := time.Parse(l, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("civil: invalid date %q", s)
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return d.In(time.UTC).Format(layout)
}

// Value stores the date as YYYY-MM-DD text, which both Postgres DATE columns and
// SQLite accept.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan reads a date from time.Time (lib/pq, pgx, modernc DATE columns) or text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("civil: cannot scan %T into Date", src)
	}
}

func (d *Date) scanText(s string) error {
	// SQLite may hand back a full timestamp when the value was bound as time.Time.
	if len(s) > len(layout) {
		s = s[:len(layout)]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	return d.scanText(s)
}
