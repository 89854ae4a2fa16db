// Package dateutil handles the dd-MM-yy dates used throughout the
// maintenance log.
package dateutil

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidDate is returned for strings that are not a real dd-MM-yy date.
var ErrInvalidDate = errors.New("date must be a valid dd-MM-yy")

// Layout is the time layout of a dd-MM-yy string.
const Layout = "02-01-06"

var ddMmYy = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{2})$`)

// ParseDdMmYy parses s as a calendar date. Two-digit years are 20yy. The result
// is midnight UTC.
func ParseDdMmYy(s string) (time.Time, error) {
	m := ddMmYy.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidDate)
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	year += 2000

	if month < 1 || month > 12 || day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidDate)
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// IsValidDdMmYy reports whether s is a real dd-MM-yy date.
func IsValidDdMmYy(s string) bool {
	_, err := ParseDdMmYy(s)
	return err == nil
}

// FormatDdMmYy formats t as dd-MM-yy in t's location.
func FormatDdMmYy(t time.Time) string {
	return t.Format(Layout)
}

// TodayDdMmYy returns the date of now as dd-MM-yy.
func TodayDdMmYy(now time.Time) string {
	return FormatDdMmYy(now)
}

func daysIn(m time.Month, year int) int {
	// Day 0 of the next month is the last day of m.
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
