package calendar

import (
	"fmt"
	"time"
)

// AgeBand groups students for time-of-day rules. An empty band skips the
// band-specific checks but keeps the general ones.
type AgeBand string

const (
	AgeBandChild AgeBand = "child"
	AgeBandTeen  AgeBand = "teen"
	AgeBandAdult AgeBand = "adult"
)

// ParseAgeBand validates an age band string. Empty input is accepted and
// means "no band".
func ParseAgeBand(s string) (AgeBand, error) {
	switch AgeBand(s) {
	case "", AgeBandChild, AgeBandTeen, AgeBandAdult:
		return AgeBand(s), nil
	}
	return "", fmt.Errorf("unknown age band %q", s)
}

// Advice is the outcome of evaluating a proposed session time. Errors
// block scheduling; warnings are advisory and never block, so a caller
// can surface them and still submit.
type Advice struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Evaluate applies the time-of-day and calendar rules to a proposed
// session start. All applicable warnings are collected even after an
// error has already invalidated the time.
func Evaluate(t time.Time, band AgeBand) Advice {
	adv := Advice{Valid: true}
	hour := t.Hour()
	weekday := t.Weekday()
	isWeekend := weekday == time.Saturday || weekday == time.Sunday

	switch band {
	case AgeBandChild:
		if hour >= 20 {
			adv.Valid = false
			adv.Errors = append(adv.Errors, "session starts too late for a minor")
		}
		if hour < 10 && !isWeekend {
			adv.Warnings = append(adv.Warnings, "early weekday start may conflict with school hours")
		}
	case AgeBandTeen:
		if hour >= 21 {
			adv.Warnings = append(adv.Warnings, "late evening session for a teenage student")
		}
	}

	if weekday == time.Sunday && hour < 11 {
		adv.Warnings = append(adv.Warnings, "early Sunday morning session")
	}

	cl := Classify(t)
	if cl.IsHoliday {
		adv.Warnings = append(adv.Warnings, fmt.Sprintf("%s is a public holiday", cl.HolidayName))
		if band == AgeBandChild && IsChristmasSeason(t) {
			adv.Warnings = append(adv.Warnings, "holiday falls in the Christmas/New Year season, consider rescheduling")
		}
	}
	if cl.IsSchoolBreak {
		adv.Warnings = append(adv.Warnings, fmt.Sprintf("date falls inside %s", cl.BreakName))
	}
	if cl.IsActiveTerm && !isWeekend && hour < 12 {
		adv.Warnings = append(adv.Warnings, "weekday morning during school term, verify the student is not in school")
	}

	return adv
}
