package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Zone is the fixed UTC-3 offset used to decide what "today" is.
var Zone = time.FixedZone("UTC-3", -3*60*60)

// Month is a calendar month in YYYY-MM form. Bucketing compares these strings
// directly, so a date belongs to the month equal to its first 7 characters.
type Month string

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// ParseMonth accepts YYYY-MM or YYYY-MM-DD and returns the month bucket.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if len(s) == 10 {
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return "", fmt.Errorf("invalid month %q: %w", s, err)
		}
		s = s[:7]
	}
	if len(s) != 7 {
		return "", fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", fmt.Errorf("invalid month %q: %w", s, err)
	}
	return Month(s), nil
}

// MonthOf returns the month bucket of t in t's own location.
func MonthOf(t time.Time) Month {
	return Month(t.Format("2006-01"))
}

// CurrentMonth returns the month of the system clock in Zone.
func CurrentMonth() Month {
	return MonthOf(time.Now().In(Zone))
}

// AddMonths adds delta whole months. The day is pinned to the first so there is
// no day-of-month drift; negative deltas and year rollover are handled.
func AddMonths(ym Month, delta int) Month {
	y, m := ym.parts()
	t := time.Date(y, time.Month(m)+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return MonthOf(t)
}

// AddMonths is the method form of the package-level AddMonths.
func (m Month) AddMonths(delta int) Month {
	return AddMonths(m, delta)
}

func (m Month) parts() (year, month int) {
	s := string(m)
	if len(s) < 7 {
		return 1, 1
	}
	year, _ = strconv.Atoi(s[:4])
	month, _ = strconv.Atoi(s[5:7])
	if month < 1 || month > 12 {
		month = 1
	}
	return year, month
}

// FirstDay returns the first calendar day of the month.
func (m Month) FirstDay() Date {
	y, mo := m.parts()
	return NewDate(y, mo, 1)
}

// LastDay returns the last calendar day of the month.
func (m Month) LastDay() Date {
	return m.AddMonths(1).FirstDay().AddDays(-1)
}

// Contains reports whether d falls in the month.
func (m Month) Contains(d Date) bool {
	return d.Bucket() == m
}

// Label returns the capitalized Spanish "Mes YYYY" form, e.g. "Marzo 2025".
func (m Month) Label() string {
	y, mo := m.parts()
	name := monthNames[mo-1]
	return strings.ToUpper(name[:1]) + name[1:] + " " + strconv.Itoa(y)
}

// ShortLabel returns the three-letter capitalized month, e.g. "Mar".
func (m Month) ShortLabel() string {
	_, mo := m.parts()
	name := monthNames[mo-1][:3]
	return strings.ToUpper(name[:1]) + name[1:]
}

func (m Month) String() string {
	return string(m)
}

// MonthLabel is the function form of Month.Label.
func MonthLabel(ym Month) string {
	return ym.Label()
}

// MonthWindow returns n consecutive months ending at end, oldest first.
func MonthWindow(end Month, n int) []Month {
	out := make([]Month, n)
	for i := 0; i < n; i++ {
		out[i] = end.AddMonths(i - (n - 1))
	}
	return out
}
