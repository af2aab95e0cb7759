package core

import (
	"fmt"
	"time"
)

// Month is a calendar month without a day component.
type Month struct {
	Year int
	Mon  time.Month
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: t.Month()}
}

// String formats the month as "2006-01".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Mon))
}

// Compact formats the month as "200601", the form the statistics API expects.
func (m Month) Compact() string {
	return fmt.Sprintf("%04d%02d", m.Year, int(m.Mon))
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
}

// NextStart returns midnight UTC on the first day of the following month,
// so [Start, NextStart) covers the whole month.
func (m Month) NextStart() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return m.NextStart().AddDate(0, 0, -1).Day()
}

// Minus returns the month n months earlier.
func (m Month) Minus(n int) Month {
	return MonthOf(m.Start().AddDate(0, -n, 0))
}

// Contains reports whether t falls inside the month.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Mon
}
