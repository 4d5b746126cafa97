package feed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar day with no time component. Its String form is the
// storage key; comparisons go through the struct fields.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses the canonical "YYYY/M/D" form produced by Date.String.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY/M/D", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		nums[i] = n
	}

	return NewDate(nums[0], time.Month(nums[1]), nums[2])
}

// NewDate validates the components and returns the Date.
func NewDate(year int, month time.Month, day int) (Date, error) {
	d := Date{Year: year, Month: month, Day: day}
	if DateOf(d.Time()) != d {
		return Date{}, fmt.Errorf("invalid date %d/%d/%d", year, int(month), day)
	}
	return d, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%d/%d/%d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Equal(other Date) bool {
	return d == other
}

func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}
