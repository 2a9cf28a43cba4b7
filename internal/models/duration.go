package models

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by drafts and orders.
const DateLayout = "2006-01-02"

var numericToken = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// ParseHoursPerDay reads the first number out of a free-text duration such as
// "8 hours" or "7,5 Std". Missing or non-positive values yield def.
func ParseHoursPerDay(duration string, def float64) float64 {
	token := numericToken.FindString(duration)
	if token == "" {
		return def
	}
	hours, err := strconv.ParseFloat(strings.Replace(token, ",", ".", 1), 64)
	if err != nil || hours <= 0 {
		return def
	}
	return hours
}

// DaysInclusive counts calendar days from from to to, both included.
func DaysInclusive(from, to time.Time) int {
	diff := to.Sub(from)
	if diff <= 0 {
		return 1
	}
	return int(math.Ceil(diff.Hours()/24)) + 1
}

// CorrectedTotalHours recomputes billable hours for bookings spanning several
// days. Single-day or unparseable ranges keep the stored total.
func CorrectedTotalHours(dateFrom, dateTo, duration string, stored, defaultHoursPerDay float64) float64 {
	if dateFrom == "" || dateTo == "" || dateFrom == dateTo {
		return stored
	}
	from, err := time.Parse(DateLayout, dateFrom)
	if err != nil {
		return stored
	}
	to, err := time.Parse(DateLayout, dateTo)
	if err != nil || !to.After(from) {
		return stored
	}
	return ParseHoursPerDay(duration, defaultHoursPerDay) * float64(DaysInclusive(from, to))
}
