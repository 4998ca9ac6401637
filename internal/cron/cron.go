// Package cron implements the Clock & Cron Evaluator (§4.1): a standard
// five-field cron expression parser plus an interval-based "did this fire
// between t1 and t2" query, so firing is idempotent under variable tick
// latency. No cron-parsing library appears anywhere in the example pack
// this was grounded on (see DESIGN.md); the parser and matcher below are
// original, built against time.Time/time.Location only.
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// fieldRange describes the valid bounds for one of the five cron fields.
type fieldRange struct {
	min, max int
}

var (
	minuteRange  = fieldRange{0, 59}
	hourRange    = fieldRange{0, 23}
	domRange     = fieldRange{1, 31}
	monthRange   = fieldRange{1, 12}
	weekdayRange = fieldRange{0, 7} // 0 and 7 both mean Sunday; 7 normalized to 0
)

// Schedule is a parsed five-field cron expression.
type Schedule struct {
	minutes  map[int]bool
	hours    map[int]bool
	doms     map[int]bool
	months   map[int]bool
	weekdays map[int]bool
	loc      *time.Location
	expr     string
}

// Parse parses a standard five-field cron expression (minute hour
// day-of-month month day-of-week) supporting *, ',', '-', and '/' in the
// given time zone. A nil location defaults to UTC.
func Parse(expr string, loc *time.Location) (*Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d in %q", len(fields), expr)
	}

	minutes, err := parseField(fields[0], minuteRange)
	if err != nil {
		return nil, fmt.Errorf("cron: minute field: %w", err)
	}
	hours, err := parseField(fields[1], hourRange)
	if err != nil {
		return nil, fmt.Errorf("cron: hour field: %w", err)
	}
	doms, err := parseField(fields[2], domRange)
	if err != nil {
		return nil, fmt.Errorf("cron: day-of-month field: %w", err)
	}
	months, err := parseField(fields[3], monthRange)
	if err != nil {
		return nil, fmt.Errorf("cron: month field: %w", err)
	}
	weekdays, err := parseField(fields[4], weekdayRange)
	if err != nil {
		return nil, fmt.Errorf("cron: day-of-week field: %w", err)
	}
	// Normalize 7 -> 0 (Sunday) in the weekday set.
	if weekdays[7] {
		weekdays[0] = true
		delete(weekdays, 7)
	}

	return &Schedule{
		minutes:  minutes,
		hours:    hours,
		doms:     doms,
		months:   months,
		weekdays: weekdays,
		loc:      loc,
		expr:     expr,
	}, nil
}

func parseField(field string, r fieldRange) (map[int]bool, error) {
	set := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		if err := parsePart(part, r, set); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func parsePart(part string, r fieldRange, set map[int]bool) error {
	step := 1
	base := part
	if i := strings.IndexByte(part, '/'); i >= 0 {
		base = part[:i]
		s, err := strconv.Atoi(part[i+1:])
		if err != nil || s <= 0 {
			return fmt.Errorf("invalid step in %q", part)
		}
		step = s
	}

	var lo, hi int
	switch {
	case base == "*":
		lo, hi = r.min, r.max
	case strings.Contains(base, "-"):
		bounds := strings.SplitN(base, "-", 2)
		if len(bounds) != 2 {
			return fmt.Errorf("invalid range %q", base)
		}
		var err error
		lo, err = strconv.Atoi(bounds[0])
		if err != nil {
			return fmt.Errorf("invalid range start %q", bounds[0])
		}
		hi, err = strconv.Atoi(bounds[1])
		if err != nil {
			return fmt.Errorf("invalid range end %q", bounds[1])
		}
	default:
		v, err := strconv.Atoi(base)
		if err != nil {
			return fmt.Errorf("invalid value %q", base)
		}
		lo, hi = v, v
	}

	if lo < r.min || hi > r.max || lo > hi {
		return fmt.Errorf("value out of range [%d,%d]: %q", r.min, r.max, part)
	}

	for v := lo; v <= hi; v += step {
		set[v] = true
	}
	return nil
}

func (s *Schedule) matches(t time.Time) bool {
	t = t.In(s.loc)
	if !s.minutes[t.Minute()] {
		return false
	}
	if !s.hours[t.Hour()] {
		return false
	}
	if !s.months[int(t.Month())] {
		return false
	}
	domMatch := s.doms[t.Day()]
	wdMatch := s.weekdays[int(t.Weekday())]
	// Cron semantics: if both day-of-month and day-of-week are restricted
	// (not "*"), the field is a match if either matches. If one field is
	// unrestricted ("*"), only the other constrains.
	domAny := len(s.doms) == domRange.max-domRange.min+1
	wdAny := len(s.weekdays) == 7 // every day, after 7 is folded into 0
	switch {
	case domAny && wdAny:
		return true
	case domAny:
		return wdMatch
	case wdAny:
		return domMatch
	default:
		return domMatch || wdMatch
	}
}

// maxLookahead bounds the search for the next match so a pathological
// expression (e.g. Feb 30) cannot spin forever.
const maxLookahead = 4 * 365 * 24 * time.Hour

// Next returns the first minute-aligned instant strictly after `after`
// that matches the schedule, or the zero Time if none is found within
// maxLookahead.
func (s *Schedule) Next(after time.Time) time.Time {
	t := after.In(s.loc).Truncate(time.Minute).Add(time.Minute)
	deadline := after.Add(maxLookahead)
	for t.Before(deadline) {
		if s.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

// FiresBetween answers "does this expression fire in the half-open
// interval (t1, t2]?" — true iff the next match after t1 is <= t2. This is
// what makes firing idempotent under variable tick latency (§4.1).
func (s *Schedule) FiresBetween(t1, t2 time.Time) bool {
	if !t2.After(t1) {
		return false
	}
	next := s.Next(t1)
	return !next.IsZero() && !next.After(t2)
}

// String returns the original expression text.
func (s *Schedule) String() string {
	return s.expr
}
