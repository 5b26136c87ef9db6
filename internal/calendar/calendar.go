package calendar

import "time"

// Classification describes what kind of day an instant falls on.
type Classification struct {
	IsHoliday     bool
	HolidayName   string
	IsSchoolBreak bool
	BreakName     string
	IsActiveTerm  bool
}

// EasterSunday computes Gregorian Easter for the given year using the
// anonymous Computus algorithm. All movable feasts derive from this date,
// so the calendar works for any year without a lookup table.
func EasterSunday(year int, loc *time.Location) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}

type holiday struct {
	name   string
	offset int // days relative to Easter Sunday, only for movable feasts
	month  time.Month
	day    int
}

var fixedHolidays = []holiday{
	{name: "New Year", month: time.January, day: 1},
	{name: "Labour Day", month: time.May, day: 1},
	{name: "National Holiday", month: time.October, day: 3},
	{name: "Christmas Day", month: time.December, day: 25},
	{name: "Second Christmas Day", month: time.December, day: 26},
}

var movableHolidays = []holiday{
	{name: "Good Friday", offset: -2},
	{name: "Easter Monday", offset: 1},
	{name: "Ascension Day", offset: 39},
	{name: "Whit Monday", offset: 50},
}

// Classify reports holiday, school-break, and term membership for an
// instant. The instant's own location determines the local date, so
// callers in different timezones get the answer for their wall clock.
func Classify(t time.Time) Classification {
	var cl Classification

	cl.IsHoliday, cl.HolidayName = holidayOn(t)
	cl.IsSchoolBreak, cl.BreakName = schoolBreakOn(t)
	cl.IsActiveTerm = !cl.IsSchoolBreak

	return cl
}

func holidayOn(t time.Time) (bool, string) {
	for _, h := range fixedHolidays {
		if t.Month() == h.month && t.Day() == h.day {
			return true, h.name
		}
	}

	easter := EasterSunday(t.Year(), t.Location())
	for _, h := range movableHolidays {
		d := easter.AddDate(0, 0, h.offset)
		if t.Month() == d.Month() && t.Day() == d.Day() {
			return true, h.name
		}
	}

	return false, ""
}

// School breaks are rule-derived rather than enumerated per year:
// winter spans the year boundary, spring tracks Easter, summer and
// autumn are fixed windows.
func schoolBreakOn(t time.Time) (bool, string) {
	month, day := t.Month(), t.Day()

	switch {
	case month == time.December && day >= 23, month == time.January && day <= 7:
		return true, "winter break"
	case month == time.July, month == time.August:
		return true, "summer break"
	case month == time.October && day >= 25:
		return true, "autumn break"
	}

	easter := EasterSunday(t.Year(), t.Location())
	springStart := easter.AddDate(0, 0, -6)
	springEnd := easter.AddDate(0, 0, 2) // through Easter Monday
	day0 := time.Date(t.Year(), month, day, 0, 0, 0, 0, t.Location())
	if !day0.Before(springStart) && day0.Before(springEnd) {
		return true, "spring break"
	}

	return false, ""
}

// IsChristmasSeason reports whether the instant falls in the
// Christmas/New Year stretch (Dec 24 through Jan 1).
func IsChristmasSeason(t time.Time) bool {
	return (t.Month() == time.December && t.Day() >= 24) ||
		(t.Month() == time.January && t.Day() == 1)
}
