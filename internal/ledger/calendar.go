package ledger

import (
	"strconv"
	"time"
)

// DaysInMonth returns the number of days of a 0-indexed month.
func DaysInMonth(month, year int) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// Weekday returns the proleptic Gregorian weekday of day/month/year with a
// 0-indexed month.
func Weekday(day, month, year int) time.Weekday {
	return time.Date(year, time.Month(month+1), day, 0, 0, 0, 0, time.UTC).Weekday()
}

// WeekdayLabel returns the Vietnamese weekday label: CN for Sunday, then
// 2 through 7 for Monday through Saturday.
func WeekdayLabel(day, month, year int) string {
	wd := Weekday(day, month, year)
	if wd == time.Sunday {
		return "CN"
	}
	return strconv.Itoa(int(wd) + 1)
}

// IsSunday reports whether the given date falls on a Sunday.
func IsSunday(day, month, year int) bool {
	return Weekday(day, month, year) == time.Sunday
}
